package floatingtemple

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything needed to start a network peer, loaded
// through viper so flags, environment variables, and config files all
// resolve through one precedence chain (SPEC_FULL.md §2
// "Configuration").
type Config struct {
	LocalAddress string
	LocalPort    int

	KnownPeerID string

	InterpreterType string

	// TransportThreads bounds the connection manager's concurrent dial
	// pool (spec.md §5 "thread pool whose size is configured at startup").
	TransportThreads int

	// DelayObjectBinding toggles whether an anonymously-created object's
	// SUB_OBJECT_CREATION event is emitted immediately at creation (off)
	// or withheld until the new handle first appears in an event of its
	// own, as a method call on it or its creator's commit, whichever
	// comes first (on). Both orderings are individually valid; they just
	// interleave differently with whatever else the creating method does
	// afterward (spec.md §6 "delay_object_binding").
	DelayObjectBinding bool

	// Linger keeps a recording thread alive after its top-level program
	// returns, so later rejections can still rewind it (spec.md §4.7).
	Linger bool
}

const (
	keyLocalAddress       = "peer.address"
	keyLocalPort          = "peer.port"
	keyKnownPeerID        = "peer.known_id"
	keyInterpreterType    = "interpreter.type"
	keyTransportThreads   = "transport.threads"
	keyDelayObjectBinding = "object.delay_binding"
	keyLinger             = "recording.linger"
)

// BindFlags registers this config's fields onto flags and a viper
// instance, so pflag-parsed flags and any FLOATINGTEMPLE_* environment
// variable resolve through the same precedence chain. cmd/ft-peer does
// not call it: it parses its own kingpin flags and sets them on viper
// directly.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String("address", "127.0.0.1", "local bind address")
	flags.Int("port", 7000, "local bind port")
	flags.String("known-peer", "", "peer ID of a known peer to bootstrap from")
	flags.String("interpreter", "fake", "interpreter type identifier sent in HELLO")
	flags.Int("transport-threads", 8, "size of the connection manager's dial pool")
	flags.Bool("delay-object-binding", false, "defer a created object's SUB_OBJECT_CREATION event until its handle is first used")
	flags.Bool("linger", false, "keep a recording thread alive after its program returns")

	_ = v.BindPFlag(keyLocalAddress, flags.Lookup("address"))
	_ = v.BindPFlag(keyLocalPort, flags.Lookup("port"))
	_ = v.BindPFlag(keyKnownPeerID, flags.Lookup("known-peer"))
	_ = v.BindPFlag(keyInterpreterType, flags.Lookup("interpreter"))
	_ = v.BindPFlag(keyTransportThreads, flags.Lookup("transport-threads"))
	_ = v.BindPFlag(keyDelayObjectBinding, flags.Lookup("delay-object-binding"))
	_ = v.BindPFlag(keyLinger, flags.Lookup("linger"))

	v.SetEnvPrefix("floatingtemple")
	v.AutomaticEnv()
}

// LoadConfig reads every bound key off v into a Config, coercing
// loosely-typed sources (env vars arrive as strings) via spf13/cast.
func LoadConfig(v *viper.Viper) (*Config, error) {
	port, err := cast.ToIntE(v.Get(keyLocalPort))
	if err != nil {
		return nil, fmt.Errorf("floatingtemple: parsing %s: %w", keyLocalPort, err)
	}
	threads, err := cast.ToIntE(v.Get(keyTransportThreads))
	if err != nil {
		return nil, fmt.Errorf("floatingtemple: parsing %s: %w", keyTransportThreads, err)
	}

	return &Config{
		LocalAddress:       cast.ToString(v.Get(keyLocalAddress)),
		LocalPort:          port,
		KnownPeerID:        cast.ToString(v.Get(keyKnownPeerID)),
		InterpreterType:    cast.ToString(v.Get(keyInterpreterType)),
		TransportThreads:   threads,
		DelayObjectBinding: cast.ToBool(v.Get(keyDelayObjectBinding)),
		Linger:             cast.ToBool(v.Get(keyLinger)),
	}, nil
}
