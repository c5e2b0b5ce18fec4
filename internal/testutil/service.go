package testutil

import (
	"github.com/roach88/driftless/internal/service"
)

// Service returns a two function service, orders on stage dev. hello
// subscribes to the log groups given; worker has no events. Both deploy
// from the service artifact orders.zip.
func Service(logGroups ...string) *service.Service {
	hello := service.Function{Handler: "handler.hello"}
	for _, g := range logGroups {
		hello.Events = append(hello.Events, service.Event{
			CloudWatchLog: &service.CloudWatchLogEvent{LogGroup: g},
		})
	}
	return &service.Service{
		Name: "orders",
		Provider: service.Provider{
			Stage:   "dev",
			Region:  "us-east-1",
			Runtime: "nodejs20.x",
		},
		Package: service.Package{Artifact: ".serverless/orders.zip"},
		Functions: map[string]service.Function{
			"hello":  hello,
			"worker": {Handler: "handler.worker"},
		},
	}
}
