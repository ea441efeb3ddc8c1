package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcbridge/gateclient"
	"github.com/arcbridge/gateclient/internal/gatewayenv"
)

// newAdminServer builds the loopback-only admin *http.Server exposing
// /metrics (Prometheus) and /debug/groups (current rate-limit state),
// the latter rate-limited with go-chi/httprate since it is reachable by
// anything on the loopback interface, not just the operator who deployed
// this process.
func newAdminServer(env *gatewayenv.Env, registry *prometheus.Registry, client *gateclient.Client, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	debugGroups := httprate.Limit(
		env.AdminRateLimitRPS,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDebugGroups(w, r, client)
	}))
	mux.Handle("/debug/groups", debugGroups)

	return &http.Server{
		Addr:              env.AdminBindAddress + ":" + strconv.Itoa(env.AdminPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type debugGroupsResponse struct {
	Groups []gateclient.GroupSnapshot `json:"groups"`
	Queue  queueDepths                `json:"queue"`
}

type queueDepths struct {
	High   int `json:"high"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

func handleDebugGroups(w http.ResponseWriter, r *http.Request, client *gateclient.Client) {
	high, normal, low := client.QueueDepths()
	resp := debugGroupsResponse{
		Groups: client.Groups(),
		Queue:  queueDepths{High: high, Normal: normal, Low: low},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
