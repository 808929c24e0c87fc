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


package queue

import "errors"

var (
	// ErrConnectionFailed is returned when the queue cannot reach its backing
	// store within the configured number of attempts.
	ErrConnectionFailed = errors.New("queue connection failed")

	// ErrInvalidBatchSize is returned when a pop is requested for fewer than one item.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidEnvelope is returned when a stored record is not a recognized envelope.
	ErrInvalidEnvelope = errors.New("invalid queue envelope")

	// ErrURLRequired is returned when no connection URL is configured.
	ErrURLRequired = errors.New("queue URL required")

	// ErrNameRequired is returned when no queue name is configured.
	ErrNameRequired = errors.New("queue name required")

	// ErrCodecRequired is returned when no item codec is provided.
	ErrCodecRequired = errors.New("codec required")

	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("queue closed")
)
