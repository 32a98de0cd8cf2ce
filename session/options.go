package session

import "time"

// DefaultPingInterval is used by WithPing when called with a zero
// interval, matching the CLI's documented default of 75ms.
const DefaultPingInterval = 75 * time.Millisecond

// DefaultCANIDMcu and DefaultCANIDRemote are the default 29-bit CAN
// identifiers for host->mcu and mcu->host traffic respectively.
const (
	DefaultCANIDMcu    uint32 = 0x1FFFFF01
	DefaultCANIDRemote uint32 = 0x1FFFFF02
)

// Config holds a Session's identity and behavior configuration.
type Config struct {
	mcuID       uint16
	signature   [3]byte
	flashSize   uint32
	mode        Mode
	readLimit   uint32
	hasReadCap  bool
	canIDMcu    uint32
	canIDRemote uint32
	extended    bool
	erase       bool
	verify      bool
	force       bool
	pingEvery   time.Duration

	logger   Logger
	progress ProgressCallback
}

func defaultConfig() Config {
	return Config{
		canIDMcu:    DefaultCANIDMcu,
		canIDRemote: DefaultCANIDRemote,
		extended:    true,
		verify:      true,
		logger:      noopLogger{},
	}
}

// Option configures a Session at construction time.
type Option func(*Config)

// WithMCUID sets the 16-bit operator-chosen session identifier embedded
// in every frame.
func WithMCUID(id uint16) Option {
	return func(c *Config) { c.mcuID = id }
}

// WithSignature sets the 3-byte device signature expected in
// BOOTLOADER_START.
func WithSignature(sig [3]byte) Option {
	return func(c *Config) { c.signature = sig }
}

// WithFlashSize sets the target's total flash size in bytes, used to
// derive the bootloader region size during a read-mode probe.
func WithFlashSize(size uint32) Option {
	return func(c *Config) { c.flashSize = size }
}

// WithMode selects write (default) or read mode.
func WithMode(mode Mode) Option {
	return func(c *Config) { c.mode = mode }
}

// WithReadLimit caps the highest address read back in read mode. If
// never called, the session reads up to the bootloader-reported
// program_size.
func WithReadLimit(limit uint32) Option {
	return func(c *Config) {
		c.readLimit = limit
		c.hasReadCap = true
	}
}

// WithCANIDs overrides the default host->mcu and mcu->host CAN
// identifiers.
func WithCANIDs(mcu, remote uint32) Option {
	return func(c *Config) {
		c.canIDMcu = mcu
		c.canIDRemote = remote
	}
}

// WithStandardFrameFormat selects 11-bit standard identifiers instead of
// the default 29-bit extended format.
func WithStandardFrameFormat(sff bool) Option {
	return func(c *Config) { c.extended = !sff }
}

// WithErase requests a whole-flash erase before the first write.
func WithErase(erase bool) Option {
	return func(c *Config) { c.erase = erase }
}

// WithVerify enables or disables the post-write verify read pass.
// Default true.
func WithVerify(verify bool) Option {
	return func(c *Config) { c.verify = verify }
}

// WithForce allows the session to continue past a protocol-version
// mismatch in BOOTLOADER_START (signature mismatches are never
// recoverable).
func WithForce(force bool) Option {
	return func(c *Config) { c.force = force }
}

// WithPing enables the keep-alive pinger at the given interval while the
// session is in Init. A zero interval selects DefaultPingInterval.
func WithPing(interval time.Duration) Option {
	return func(c *Config) {
		if interval <= 0 {
			interval = DefaultPingInterval
		}
		c.pingEvery = interval
	}
}

// WithLogger sets a logger for session diagnostics.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgressCallback sets a callback invoked as a write or read pass
// advances.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) { c.progress = cb }
}
