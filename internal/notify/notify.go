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

// Package notify publishes heal outcomes to a NATS subject, the way the
// teacher's event notification targets publish bucket events: best
// effort, never blocking the caller on a slow or absent broker.
package notify

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/distfs/afr/pkg/heal"
)

const subject = "afrheald.heal.outcome"

// Event is the wire shape published for every terminal heal result.
type Event struct {
	Path        string   `json:"path"`
	Outcome     string   `json:"outcome"`
	Source      string   `json:"source,omitempty"`
	FailedSinks []string `json:"failed_sinks,omitempty"`
	BytesCopied int64    `json:"bytes_copied"`
	Error       string   `json:"error,omitempty"`
}

// Publisher publishes heal outcomes to NATS. A zero Publisher (nil
// conn) is valid and silently drops every event, so callers can build
// one unconditionally and only actually dial when a broker URL is
// configured.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials url, matching the teacher's event targets dialing their
// broker once at startup rather than per event. An empty url returns a
// Publisher that drops everything, for deployments with no broker.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	conn, err := nats.Connect(url, nats.Timeout(5*time.Second), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.Wrapf(err, "notify: connect to %s", url)
	}
	return &Publisher{conn: conn}, nil
}

// Close flushes and closes the underlying connection, if any.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish sends path's heal result as an Event. A publish failure (or
// a nil connection) is swallowed: a heal that already ran to
// completion must not be undone by a notification problem.
func (p *Publisher) Publish(path string, r heal.Result) {
	if p.conn == nil {
		return
	}
	ev := Event{
		Path:        path,
		Outcome:     r.Outcome.String(),
		Source:      r.Source,
		FailedSinks: r.FailedSinks,
		BytesCopied: r.BytesCopied,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = p.conn.Publish(subject, body)
}
