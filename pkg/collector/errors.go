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

package collector

import "errors"

var (
	// ErrCollectionFailure means the node side produced nothing at all: the
	// relay could not be reached or the batched query was not understood.
	ErrCollectionFailure = errors.New("node collection failed")
	ErrUnsafeAddress     = errors.New("address is not safe to embed in a shell command")
	errMissingFromBatch  = errors.New("host missing from batch output")
	errBatchUnsupported  = errors.New("batched query not supported by relay")
	errNoAddressableHost = errors.New("no host can be addressed from the relay")
)
