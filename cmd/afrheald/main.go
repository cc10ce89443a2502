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

// Command afrheald runs the data self-heal server: an HTTP endpoint
// that triggers a heal of one inode across a fixed replica set, wired
// to Prometheus metrics and an optional NATS outcome feed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/minio/cli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/distfs/afr/internal/config"
	"github.com/distfs/afr/internal/logger"
	"github.com/distfs/afr/internal/metrics"
	"github.com/distfs/afr/internal/notify"
	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/child/localchild"
	"github.com/distfs/afr/pkg/child/rpcchild"
	"github.com/distfs/afr/pkg/heal"
)

var configFlag = cli.StringFlag{
	Name:  "config, c",
	Usage: "path to afrheald.toml",
}

func main() {
	app := cli.NewApp()
	app.Name = "afrheald"
	app.Usage = "replica self-heal daemon"
	app.Flags = []cli.Flag{configFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.FatalIf(err, "afrheald: startup failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	children, err := buildChildren(cfg)
	if err != nil {
		return err
	}

	pub, err := notify.Connect(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer pub.Close()

	engine := heal.NewEngine(children, cfg.MinBlockSize, cfg.PhaseTimeout.Duration)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/heal/{path:.*}", healHandler(engine, pub)).Methods(http.MethodPost)

	handler := cors.Default().Handler(router)

	banner(cfg)
	logger.Info(context.Background(), "afrheald listening", map[string]interface{}{"address": cfg.ListenAddress})
	return http.ListenAndServe(cfg.ListenAddress, handler)
}

// buildChildren turns each configured replica into a child.Child: an
// empty Endpoint means an in-process localchild (single-node
// deployment or test harness), anything else is a rpcchild pointed at
// that endpoint under the shared cluster secret.
func buildChildren(cfg config.Config) ([]child.Child, error) {
	children := make([]child.Child, len(cfg.Replicas))
	for i, r := range cfg.Replicas {
		if r.Endpoint == "" {
			children[i] = localchild.New(r.ID)
			continue
		}
		token, err := rpcchild.NewNodeToken(cfg.ClusterSecret)
		if err != nil {
			return nil, err
		}
		children[i] = rpcchild.NewClient(r.Endpoint, r.ID, token)
	}
	return children, nil
}

// healResponse is the JSON shape returned to a heal trigger, kept
// separate from heal.Result so the engine package carries no HTTP or
// encoding concern of its own.
type healResponse struct {
	Outcome     string   `json:"outcome"`
	Source      string   `json:"source,omitempty"`
	FailedSinks []string `json:"failed_sinks,omitempty"`
	BytesCopied int64    `json:"bytes_copied"`
	Error       string   `json:"error,omitempty"`
}

// healHandler triggers a heal of the inode at the request path and
// reports its outcome as JSON, publishing the same outcome to NATS and
// Prometheus before responding.
func healHandler(engine *heal.Engine, pub *notify.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		path := "/" + mux.Vars(req)["path"]
		loc := child.Location{Path: path}

		done := make(chan heal.Result, 1)
		engine.Run(req.Context(), loc, func(r heal.Result) { done <- r })
		res := <-done

		pub.Publish(path, res)
		logger.Info(req.Context(), "heal request served", map[string]interface{}{
			"path":    path,
			"outcome": res.Outcome.String(),
			"bytes":   humanize.Bytes(uint64(res.BytesCopied)),
		})

		resp := healResponse{
			Outcome:     res.Outcome.String(),
			Source:      res.Source,
			FailedSinks: res.FailedSinks,
			BytesCopied: res.BytesCopied,
		}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Outcome == heal.OutcomeAborted {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func banner(cfg config.Config) {
	color.New(color.FgGreen, color.Bold).Printf("afrheald")
	fmt.Printf(" starting on %s with %d replicas\n", cfg.ListenAddress, len(cfg.Replicas))
}
