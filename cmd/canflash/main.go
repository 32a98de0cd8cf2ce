// Package main is the canflash CLI: a single-command cobra program that
// wires the device catalog, hex file I/O, a platform CAN transport, and
// the session state machine into one bootloader flashing run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/canflash/canflash/device"
	"github.com/canflash/canflash/hexio"
	"github.com/canflash/canflash/image"
	"github.com/canflash/canflash/session"
	"github.com/canflash/canflash/transport"
)

var flags struct {
	file        string
	iface       string
	partno      string
	mcuid       string
	erase       bool
	noVerify    bool
	read        string
	force       bool
	reset       string
	canIDMcu    string
	canIDRemote string
	sff         bool
	ping        string
	verbose     int
}

// readEnabledSentinel is the NoOptDefVal for --read: it marks the flag
// as present with no explicit address cap, distinct from "" meaning the
// flag was never given at all.
const readEnabledSentinel = "\x00read-no-limit"

// pingEnabledSentinel is the NoOptDefVal for --ping, selecting
// session.DefaultPingInterval.
const pingEnabledSentinel = "\x00ping-default"

var rootCmd = &cobra.Command{
	Use:   "canflash",
	Short: "Flash or read back an AVR target over a CAN bootloader",
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.file, "file", "", "hex file to flash, or output file for read mode (\"-\" for stdin/stdout)")
	f.StringVar(&flags.iface, "iface", "can0", "transport interface identifier")
	f.StringVar(&flags.partno, "partno", "", "device alias (see device catalog)")
	f.StringVar(&flags.mcuid, "mcuid", "0", "16-bit session identifier (decimal or 0x-prefixed hex)")
	f.BoolVar(&flags.erase, "erase", false, "erase whole flash before writing")
	f.BoolVar(&flags.noVerify, "no_verify", false, "skip the post-write verify pass")
	f.StringVar(&flags.read, "read", "", "read mode; optional numeric argument caps the maximum address")
	f.Lookup("read").NoOptDefVal = readEnabledSentinel
	f.BoolVar(&flags.force, "force", false, "proceed despite a protocol-version mismatch")
	f.StringVar(&flags.reset, "reset", "", "<can_id>#<hex_bytes> frame to emit once at startup")
	f.StringVar(&flags.canIDMcu, "can_id_mcu", "", "override the default host->mcu CAN identifier")
	f.StringVar(&flags.canIDRemote, "can_id_remote", "", "override the default mcu->host CAN identifier")
	f.BoolVar(&flags.sff, "sff", false, "use 11-bit standard frame format instead of 29-bit extended")
	f.StringVar(&flags.ping, "ping", "", "enable the keep-alive pinger; optional interval in ms (default 75)")
	f.Lookup("ping").NoOptDefVal = pingEnabledSentinel
	f.CountVarP(&flags.verbose, "verbose", "v", "increase logging detail (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogrusLogger(verbosityToLevel(flags.verbose))

	dev, ok := device.Lookup(flags.partno)
	if !ok {
		return &session.ConfigurationError{Reason: fmt.Sprintf("unknown partno %q", flags.partno)}
	}

	mcuID, err := parseUint16(flags.mcuid)
	if err != nil {
		return fmt.Errorf("canflash: --mcuid: %w", err)
	}

	opts := []session.Option{
		session.WithMCUID(mcuID),
		session.WithSignature(dev.Signature),
		session.WithFlashSize(dev.FlashSize),
		session.WithErase(flags.erase),
		session.WithVerify(!flags.noVerify),
		session.WithForce(flags.force),
		session.WithStandardFrameFormat(flags.sff),
		session.WithLogger(log),
	}

	if flags.canIDMcu != "" || flags.canIDRemote != "" {
		mcu := session.DefaultCANIDMcu
		remote := session.DefaultCANIDRemote
		if flags.canIDMcu != "" {
			v, err := parseUint32(flags.canIDMcu)
			if err != nil {
				return fmt.Errorf("canflash: --can_id_mcu: %w", err)
			}
			mcu = v
		}
		if flags.canIDRemote != "" {
			v, err := parseUint32(flags.canIDRemote)
			if err != nil {
				return fmt.Errorf("canflash: --can_id_remote: %w", err)
			}
			remote = v
		}
		opts = append(opts, session.WithCANIDs(mcu, remote))
	}

	if cmd.Flags().Changed("ping") {
		interval := session.DefaultPingInterval
		if flags.ping != pingEnabledSentinel {
			ms, err := strconv.ParseUint(flags.ping, 10, 32)
			if err != nil {
				return fmt.Errorf("canflash: --ping: %w", err)
			}
			interval = time.Duration(ms) * time.Millisecond
		}
		opts = append(opts, session.WithPing(interval))
	}

	mode := session.ModeWrite
	if cmd.Flags().Changed("read") {
		mode = session.ModeRead
		opts = append(opts, session.WithMode(mode))
		if flags.read != readEnabledSentinel {
			limit, err := parseUint32(flags.read)
			if err != nil {
				return fmt.Errorf("canflash: --read: %w", err)
			}
			opts = append(opts, session.WithReadLimit(limit))
		}
	}

	img, err := loadImage(mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := newTransport(flags.iface)
	bridge := newSessionBridge(tr)
	if err := tr.Open(ctx); err != nil {
		return fmt.Errorf("canflash: open transport: %w", err)
	}
	defer tr.Close()

	if flags.reset != "" {
		rf, err := transport.ParseResetFrame(flags.reset)
		if err != nil {
			return &session.ConfigurationError{Reason: fmt.Sprintf("--reset: %v", err)}
		}
		if err := bridge.sendReset(rf); err != nil {
			return fmt.Errorf("canflash: sending reset frame: %w", err)
		}
	}

	opts = append(opts, session.WithProgressCallback(progressPrinter(mode)))

	sess := session.New(bridge, img, opts...)
	runErr := sess.Run(ctx, bridge.frames)
	fmt.Fprintln(os.Stderr)

	if mode == session.ModeRead && sess.Image() != nil {
		if err := saveImage(sess.Image()); err != nil {
			if runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("canflash: %w", runErr)
	}
	return nil
}

func loadImage(mode session.Mode) (*image.Image, error) {
	if mode == session.ModeRead {
		return image.NewBuilder().Build(), nil
	}
	if flags.file == "" {
		return nil, fmt.Errorf("canflash: --file is required")
	}
	r := os.Stdin
	if flags.file != "-" {
		f, err := os.Open(flags.file)
		if err != nil {
			return nil, fmt.Errorf("canflash: %w", err)
		}
		defer f.Close()
		return hexio.FromHex(f)
	}
	return hexio.FromHex(r)
}

func saveImage(img *image.Image) error {
	if flags.file == "" || flags.file == "-" {
		return hexio.ToHex(img, os.Stdout)
	}
	f, err := os.Create(flags.file)
	if err != nil {
		return fmt.Errorf("canflash: %w", err)
	}
	defer f.Close()
	return hexio.ToHex(img, f)
}

// progressPrinter renders a single, repeatedly overwritten status line
// on stderr. No third-party progress-bar dependency appears anywhere in
// the corpus, so this stays plain fmt.Fprintf.
func progressPrinter(mode session.Mode) session.ProgressCallback {
	verb := "flashing"
	if mode == session.ModeRead {
		verb = "reading"
	}
	return func(p session.Progress) {
		if p.Phase == "done" {
			return
		}
		if p.BytesTotal > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %#08x (%d/%d bytes)", verb, p.CurrentAddress, p.BytesDone, p.BytesTotal)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s: %#08x", verb, p.CurrentAddress)
		}
	}
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
