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


package core

import (
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must contain at least one non-whitespace character
//
// NOT validated:
//   - Metadata (may be nil or empty)
func ValidateChunk(chunk Chunk) error {
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	return nil
}

// ValidateEmbeddedChunk validates an EmbeddedChunk according to domain rules.
//
// Validation rules:
//   - Vector must not be empty
//   - Document must be a valid Chunk
func ValidateEmbeddedChunk(chunk EmbeddedChunk) error {
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddedChunk, ErrEmptyVector)
	}
	if err := ValidateChunk(chunk.Document); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddedChunk, err)
	}
	return nil
}
