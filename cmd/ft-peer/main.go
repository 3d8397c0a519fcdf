// Command ft-peer launches a single network peer of the runtime engine,
// backed by the fake.Register/fake.IOSink demo embedding.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/spf13/viper"
	"gopkg.in/alecthomas/kingpin.v2"

	floatingtemple "github.com/jabolina/floatingtemple"
	"github.com/jabolina/floatingtemple/pkg/definition"
	"github.com/jabolina/floatingtemple/pkg/fake"
	"github.com/jabolina/floatingtemple/pkg/types"
)

var (
	app = kingpin.New("ft-peer", "Launch a Floating Temple network peer.")

	address = app.Flag("address", "local bind address").Default("127.0.0.1").String()
	port    = app.Flag("port", "local bind port").Default("7000").Int()
	known   = app.Flag("known-peer", "peer ID of a known peer to bootstrap from").String()
	linger  = app.Flag("linger", "keep a recording thread alive after its program returns").Bool()

	metricsAddr = app.Flag("metrics-addr", "address to serve /metrics on, empty disables it").Default("").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	v := viper.New()
	v.Set("peer.address", *address)
	v.Set("peer.port", *port)
	v.Set("peer.known_id", *known)
	v.Set("interpreter.type", "fake")
	v.Set("transport.threads", 8)
	v.Set("object.delay_binding", false)
	v.Set("recording.linger", *linger)

	config, err := floatingtemple.LoadConfig(v)
	if err != nil {
		fatal(err)
	}

	logger := definition.NewDefaultLogger()
	banner := color.New(color.FgCyan)
	banner.Fprintf(colorable.NewColorableStdout(), "ft-peer starting on %s:%d\n", config.LocalAddress, config.LocalPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := floatingtemple.NewMetricsRegistry()
	peer, err := floatingtemple.CreateNetworkPeer(ctx, config, fake.Interpreter{}, registry, logger)
	if err != nil {
		fatal(err)
	}
	defer peer.Stop()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", floatingtemple.MetricsHandler(registry))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	sink := fake.NewIOSink()
	handle := peer.CreateUnversionedObject(ctx, sink, "console")

	greeting := fmt.Sprintf("hello from %s\n", peer.LocalPeerID())
	peer.RunProgram(ctx, func(thread types.Thread) (bool, types.CommittedValue) {
		thread.CallMethod(handle, "Print", []types.CommittedValue{types.StringValue(greeting)})
		return true, types.EmptyValue()
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ft-peer:", err)
	os.Exit(1)
}
