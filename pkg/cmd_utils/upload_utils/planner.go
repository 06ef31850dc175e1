// Copyright 2025 CineVision
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

package upload_utils

import "math"

// maxPartsCount is the multipart part number limit of S3 compatible storage.
const maxPartsCount = 10000

// Part is a contiguous byte range [Start, End) of the source file, numbered from 1.
type Part struct {
	Number int
	Start  int64
	End    int64
}

func (p Part) Size() int64 {
	return p.End - p.Start
}

// PlanParts splits fileSize bytes into ceil(fileSize/partSize) parts.
// Every part but the last is exactly partSize long.
func PlanParts(fileSize uint64, partSize uint64) ([]Part, error) {
	if fileSize == 0 {
		return nil, newValidationError("file is empty")
	}
	if partSize == 0 {
		return nil, newValidationError("part size must be positive")
	}
	if fileSize > math.MaxInt64 {
		return nil, newValidationError("file size %d is out of range", fileSize)
	}

	totalParts := fileSize/partSize + min(fileSize%partSize, 1)
	if totalParts > maxPartsCount {
		return nil, newValidationError("%d parts exceed the limit of %d, use a larger part size", totalParts, maxPartsCount)
	}
	parts := make([]Part, 0, totalParts)
	for k := uint64(1); k <= totalParts; k++ {
		start := (k - 1) * partSize
		end := min(k*partSize, fileSize)
		parts = append(parts, Part{
			Number: int(k),
			Start:  int64(start),
			End:    int64(end),
		})
	}
	return parts, nil
}
