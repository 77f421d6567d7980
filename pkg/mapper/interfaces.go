/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:generate mockgen -destination=mock_mapper.go -package=mapper github.com/carverauto/portmap/pkg/mapper ResultPublisher

package mapper

import (
	"context"

	"github.com/carverauto/portmap/pkg/models"
)

// Mapper runs one port-mapping pipeline per call.
type Mapper interface {
	// Run always returns a result, including when nothing could be collected.
	Run(ctx context.Context, inv *models.Inventory) *models.MappingResult
}

// ResultPublisher hands a finished result to an outside consumer.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result *models.MappingResult) error
}
