package presence

import "time"

// Default timing windows.
const (
	DefaultDelay               = 1 * time.Second
	DefaultDecodingCompilation = 2 * time.Second
	DefaultPacketCompilation   = 5 * time.Second
	DefaultHistory             = 8 * time.Second
	DefaultKeepAlive           = 5 * time.Second
	DefaultDisappearance       = 15 * time.Second
	DefaultMinRearm            = 50 * time.Millisecond
	DefaultAttributeRetention  = 15 * time.Second
)

// Config holds the timing windows of the presence engine.
type Config struct {
	// Delay is the debounce window between a pending event being flagged and
	// the device being evaluated. It is also the re-check interval when an
	// evaluation fires nothing.
	Delay time.Duration

	// DecodingCompilation is the window, back from the newest raddec, whose
	// raddecs are fully merged into a compiled event.
	DecodingCompilation time.Duration

	// PacketCompilation is the longer window whose raddecs only contribute
	// their packets.
	PacketCompilation time.Duration

	// History bounds how far back from the newest raddec the buffer reaches.
	History time.Duration

	KeepAlive     time.Duration
	Disappearance time.Duration

	// MinRearm is the shortest interval the sweep timer is ever armed for.
	MinRearm time.Duration

	// AttributeRetention is how long a dynamb property stays on a device
	// after its timestamp.
	AttributeRetention time.Duration
}

// DefaultConfig returns the default timing windows.
func DefaultConfig() Config {
	return Config{
		Delay:               DefaultDelay,
		DecodingCompilation: DefaultDecodingCompilation,
		PacketCompilation:   DefaultPacketCompilation,
		History:             DefaultHistory,
		KeepAlive:           DefaultKeepAlive,
		Disappearance:       DefaultDisappearance,
		MinRearm:            DefaultMinRearm,
		AttributeRetention:  DefaultAttributeRetention,
	}
}

// withDefaults replaces non-positive windows with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.Delay, d.Delay)
	fill(&c.DecodingCompilation, d.DecodingCompilation)
	fill(&c.PacketCompilation, d.PacketCompilation)
	fill(&c.History, d.History)
	fill(&c.KeepAlive, d.KeepAlive)
	fill(&c.Disappearance, d.Disappearance)
	fill(&c.MinRearm, d.MinRearm)
	fill(&c.AttributeRetention, d.AttributeRetention)
	return c
}
