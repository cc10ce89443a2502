/*
 * Minio Cloud Storage, (C) 2016, 2017, 2018 Minio, Inc.
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

package heal

import "github.com/pkg/errors"

var (
	errNoUpChildren    = errors.New("heal: no replica answered the probe")
	errSplitBrain      = errors.New("heal: no candidate source, replicas mutually accuse each other")
	errSourceStatFailed = errors.New("heal: stat of elected source failed")
	errSourceOpenFailed = errors.New("heal: open failed on one or more replicas")
	errSourceReadFailed = errors.New("heal: read from source failed mid-copy")
)
