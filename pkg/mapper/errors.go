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

package mapper

import "errors"

var (
	ErrConfigNil              = errors.New("config cannot be nil")
	ErrInvalidWorkers         = errors.New("workers must be greater than 0")
	ErrInvalidNodeParallelism = errors.New("node_parallelism must be greater than 0")
	ErrInvalidTimeout         = errors.New("timeouts must not be negative")
	ErrInvalidSNMPRetries     = errors.New("snmp_retries must not be negative")
	ErrNoNodeCredentials      = errors.New("at least one node credential set is required")
	ErrNoSwitchCredentials    = errors.New("at least one switch credential set is required")
	ErrPublishURLRequired     = errors.New("publish.url is required when publishing is configured")
	ErrNoDialers              = errors.New("no session dialers configured")
	ErrPublishFailed          = errors.New("failed to publish mapping result")
)
