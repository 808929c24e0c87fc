// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrInvalidMode indicates a store mode other than local or server.
	ErrInvalidMode = errors.New("invalid store mode")

	// ErrCollectionRequired indicates a missing collection name.
	ErrCollectionRequired = errors.New("collection name required")

	// ErrPathRequired indicates local mode without a storage path.
	ErrPathRequired = errors.New("storage path required for local mode")

	// ErrURLRequired indicates server mode without a server URL.
	ErrURLRequired = errors.New("server url required for server mode")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection's configured size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
