package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"

	"github.com/minithermal/print-engine/internal/logging"
	"github.com/minithermal/print-engine/pkg/dialect"
	"github.com/minithermal/print-engine/pkg/profile"
	"github.com/minithermal/print-engine/pkg/raster"
	"github.com/minithermal/print-engine/pkg/render"
	"github.com/minithermal/print-engine/pkg/session"
	"github.com/minithermal/print-engine/pkg/transport"
)

// Version is set during build via ldflags
var Version = "dev"

// notifyReadTimeout bounds status reads; the printers answer queries
// well inside a second when they answer at all.
const notifyReadTimeout = 5 * time.Second

func main() {
	// A .env next to the working directory seeds the environment before
	// flags read their defaults.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "print":
		err = runPrint(os.Args[2:])
	case "models":
		err = runModels(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "ports":
		err = runPorts()
	case "version":
		fmt.Println(Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `printcli %s - thermal printer CLI

Usage:
  printcli <command> [flags]

Commands:
  print [flags] [image-file]
    Send an image file, a line of text, a QR code, or a barcode to a
    printer.

  status [flags]
    Query a connected printer for battery, temperature, and faults.

  models [-json]
    List the supported printer models.

  ports
    List candidate serial ports on this machine.

  version
    Print the build version.

Link flags (print and status):
  -serial <path>      serial device, like /dev/rfcomm0 or /dev/ttyUSB0
  -baud <rate>        serial baud rate (default 115200)
  -net <host[:port]>  network print server (default port 9100)
  -usb <vid:pid|any>  USB printer by hex id, or first printer-class device
  -addr <mac>         BLE device address
  -name <prefix>      BLE advertised name prefix
  -model <id>         pin the printer model instead of discovery
  -timeout <dur>      BLE scan timeout (default 10s)
  -v                  verbose logging

  With no link flags, printcli scans for a BLE printer.

Print flags:
  -text <string>      print a line of word-wrapped text
  -bold               heavier text stroke
  -qr <value>         print a QR code
  -barcode <value>    print a barcode
  -format <name>      barcode format: CODE128, CODE39, EAN13, EAN8
  -mode <m>           thermal parameters: auto, image, or text
  -feed <n>           blank lines after the content (default 12, -1 for none)
  -dither             Floyd-Steinberg dithering, suits photographs
  -threshold <n>      monochrome cutoff 1-255 (default 128)
  -font <path>        TTF font file for text rendering
  -font-size <pt>     font point size (default 24)

Environment (a .env file in the working directory is loaded first):
  PRINTER_MODEL       default for -model
  PRINTER_ADDRESS     default for -addr
  PRINTER_NAME        default for -name
  PRINTER_SERIAL      default for -serial
  PRINTER_FONT        default for -font
  %s    log level: debug, info, warn, error

Examples:
  printcli print photo.png
  printcli print -dither -feed 24 photo.jpg
  printcli print -text "Hello from the kitchen" -bold
  printcli print -qr "https://example.net/menu" -addr AA:11:CC:30:99:F2
  printcli print -serial /dev/rfcomm0 -model LX-D02 receipt.png
  printcli status -name MXW01
  printcli models

`, Version, logging.LevelEnv)
}

// target holds the link selection flags shared by print and status.
type target struct {
	serialDev string
	baud      int
	netAddr   string
	usbID     string
	bleAddr   string
	bleName   string
	model     string
	timeout   time.Duration
}

func (t *target) register(fs *flag.FlagSet) {
	fs.StringVar(&t.serialDev, "serial", os.Getenv("PRINTER_SERIAL"), "serial device path")
	fs.IntVar(&t.baud, "baud", 0, "serial baud rate")
	fs.StringVar(&t.netAddr, "net", "", "network printer host[:port]")
	fs.StringVar(&t.usbID, "usb", "", "USB printer as vid:pid hex, or any")
	fs.StringVar(&t.bleAddr, "addr", os.Getenv("PRINTER_ADDRESS"), "BLE device address")
	fs.StringVar(&t.bleName, "name", os.Getenv("PRINTER_NAME"), "BLE name prefix")
	fs.StringVar(&t.model, "model", os.Getenv("PRINTER_MODEL"), "printer model id")
	fs.DurationVar(&t.timeout, "timeout", 0, "BLE scan timeout")
}

// link is an open connection plus the identity learned while opening it.
type link struct {
	handle  transport.Handle
	name    string
	address string
}

// open connects using the first link flag that is set; with none set it
// scans for a BLE printer.
func (t *target) open(logger transport.Logger) (*link, error) {
	switch {
	case t.serialDev != "":
		h, err := transport.OpenSerial(transport.SerialConfig{
			Device:      t.serialDev,
			Baud:        t.baud,
			ReadTimeout: notifyReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &link{handle: h}, nil

	case t.netAddr != "":
		host, port, err := splitHostPort(t.netAddr)
		if err != nil {
			return nil, err
		}
		h, err := transport.OpenNetwork(transport.NetworkConfig{
			Host:        host,
			Port:        port,
			ReadTimeout: notifyReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &link{handle: h}, nil

	case t.usbID != "":
		vid, pid, err := parseUSBID(t.usbID)
		if err != nil {
			return nil, err
		}
		h, err := transport.OpenUSB(transport.USBConfig{VendorID: vid, ProductID: pid})
		if err != nil {
			return nil, err
		}
		return &link{handle: h}, nil

	default:
		h, err := transport.OpenBLE(transport.BLEConfig{
			Address:     t.bleAddr,
			Name:        t.bleName,
			WidthBytes:  t.routerWidth(),
			ScanTimeout: t.timeout,
			ReadTimeout: notifyReadTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return &link{handle: h, name: h.DiscoveredName(), address: h.DiscoveredAddress()}, nil
	}
}

// routerWidth gives the BLE stream router the pinned model's row stride
// so wider heads split their raster runs correctly.
func (t *target) routerWidth() int {
	if t.model == "" {
		return 0
	}
	if p, ok := profile.Default().LookupByModelID(t.model); ok {
		return p.WidthBytes()
	}
	return 0
}

// printJob holds the content flags of the print command.
type printJob struct {
	imagePath     string
	text          string
	bold          bool
	qr            string
	barcode       string
	barcodeFormat string
	barcodeHeight int
	dither        bool
	threshold     uint8
}

// sources counts how many content sources the flags selected.
func (j printJob) sources() int {
	n := 0
	for _, set := range []bool{j.imagePath != "", j.text != "", j.qr != "", j.barcode != ""} {
		if set {
			n++
		}
	}
	return n
}

func runPrint(args []string) error {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	var tgt target
	tgt.register(fs)
	text := fs.String("text", "", "print a line of text")
	bold := fs.Bool("bold", false, "heavier text stroke")
	qr := fs.String("qr", "", "print a QR code")
	bc := fs.String("barcode", "", "print a barcode")
	bcFormat := fs.String("format", "CODE128", "barcode format")
	bcHeight := fs.Int("barcode-height", 0, "barcode bar height in rows")
	modeFlag := fs.String("mode", "auto", "thermal parameters: auto, image, or text")
	feed := fs.Int("feed", 0, "blank lines after the content, -1 for none")
	dither := fs.Bool("dither", false, "Floyd-Steinberg dithering")
	threshold := fs.Int("threshold", 0, "monochrome cutoff 1-255")
	font := fs.String("font", os.Getenv("PRINTER_FONT"), "TTF font file")
	fontSize := fs.Float64("font-size", 0, "font point size")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.New(*verbose)
	defer logger.Sync()

	mode, err := parseMode(*modeFlag)
	if err != nil {
		return err
	}
	if *threshold < 0 || *threshold > 255 {
		return fmt.Errorf("threshold must be between 1 and 255, got %d", *threshold)
	}

	job := printJob{
		imagePath:     fs.Arg(0),
		text:          *text,
		bold:          *bold,
		qr:            *qr,
		barcode:       *bc,
		barcodeFormat: *bcFormat,
		barcodeHeight: *bcHeight,
		dither:        *dither,
		threshold:     uint8(*threshold),
	}
	switch job.sources() {
	case 0:
		return fmt.Errorf("nothing to print: give an image file, -text, -qr, or -barcode")
	case 1:
	default:
		return fmt.Errorf("give exactly one of an image file, -text, -qr, or -barcode")
	}

	renderer := render.NewTextRenderer()
	renderer.FontPath = *font
	renderer.FontSize = *fontSize
	renderer.Threshold = job.threshold

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := session.NewEngine(session.Config{Renderer: renderer, Logger: logger})

	lnk, err := tgt.open(logger)
	if err != nil {
		return err
	}

	// The engine resolves again inside PrintOnce; resolving here sizes
	// CLI-side rasterization and surfaces identity problems before any
	// bytes move.
	match, err := profile.NewResolver(engine.Registry()).ResolveDevice(tgt.model, lnk.name, lnk.address)
	if err != nil {
		lnk.handle.Close()
		return err
	}
	if match.Profile.Dialect == profile.DialectExtendedV2 {
		if _, isBLE := lnk.handle.(*transport.BLEHandle); isBLE {
			lnk.handle.Close()
			return fmt.Errorf("model %s prints over its serial link; pass -serial", match.Profile.ModelID)
		}
	}

	content, err := buildContent(job, match.Profile.PrintWidthPx)
	if err != nil {
		lnk.handle.Close()
		return err
	}

	result := engine.PrintOnce(ctx, lnk.handle, session.Request{
		Content:       content,
		Model:         tgt.model,
		DeviceName:    lnk.name,
		DeviceAddress: lnk.address,
		Mode:          mode,
		FeedLines:     *feed,
	})
	if !result.Success {
		return fmt.Errorf("%s failed after %d bytes: %v", result.FailedStage, result.BytesSent, result.Err)
	}

	fmt.Printf("Printed %d bytes on %s\n", result.BytesSent, match.Profile.ModelID)
	return nil
}

// buildContent turns the job's source into encoder content. widthPx
// sizes the sources rasterized here; text is rendered inside the engine
// at the resolved width.
func buildContent(job printJob, widthPx int) (dialect.Content, error) {
	switch {
	case job.text != "":
		return dialect.Text{Value: job.text, Bold: job.bold}, nil

	case job.qr != "":
		bmp, err := render.QRCode(job.qr, widthPx)
		if err != nil {
			return nil, err
		}
		return dialect.Bitmap{Bits: bmp}, nil

	case job.barcode != "":
		format, err := parseBarcodeFormat(job.barcodeFormat)
		if err != nil {
			return nil, err
		}
		bmp, err := render.Barcode(job.barcode, format, widthPx, job.barcodeHeight)
		if err != nil {
			return nil, err
		}
		return dialect.Bitmap{Bits: bmp}, nil

	default:
		img, err := imaging.Open(job.imagePath, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to open image %s: %w", job.imagePath, err)
		}
		bmp, err := raster.FromImage(img, widthPx, raster.ConvertOptions{
			Dither:    job.dither,
			Threshold: job.threshold,
		})
		if err != nil {
			return nil, err
		}
		return dialect.Bitmap{Bits: bmp}, nil
	}
}

func runModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "emit the profile table as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profiles := profile.Default().ListAll()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	}

	fmt.Printf("%-8s %-12s %6s %6s %6s  %s\n", "MODEL", "DIALECT", "WIDTH", "CHUNK", "DELAY", "ALIASES")
	for _, p := range profiles {
		aliases := append(append([]string{}, p.NamePrefixes...), p.MacSuffixes...)
		fmt.Printf("%-8s %-12s %4dpx %5dB %4dms  %s\n",
			p.ModelID, p.Dialect, p.PrintWidthPx, p.ChunkSizeBytes,
			p.InterChunkDelayMs, strings.Join(aliases, ", "))
	}
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var tgt target
	tgt.register(fs)
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.New(*verbose)
	defer logger.Sync()

	lnk, err := tgt.open(logger)
	if err != nil {
		return err
	}
	defer lnk.handle.Close()

	reader, ok := lnk.handle.(transport.StatusReader)
	if !ok {
		return fmt.Errorf("this link cannot read printer notifications")
	}

	// Only the standard-v1 family answers polled status queries.
	if m, err := profile.NewResolver(profile.Default()).ResolveDevice(tgt.model, lnk.name, lnk.address); err == nil {
		if m.Profile.Dialect != profile.DialectStandardV1 {
			return fmt.Errorf("model %s does not answer status queries", m.Profile.ModelID)
		}
	}

	if _, err := lnk.handle.Write(dialect.V1StatusRequest()); err != nil {
		return fmt.Errorf("failed to send status query: %w", err)
	}

	buf := make([]byte, 64)
	n, err := reader.ReadNotification(buf)
	if err != nil {
		return fmt.Errorf("failed to read status reply: %w", err)
	}
	st, err := dialect.ParseV1Status(buf[:n])
	if err != nil {
		return err
	}

	state := "idle"
	if st.Printing {
		state = "printing"
	}
	fmt.Printf("state:        %s\n", state)
	fmt.Printf("battery:      %d\n", st.Battery)
	fmt.Printf("temperature:  %d\n", st.Temperature)
	if st.ErrorCode != 0 {
		fmt.Printf("error:        0x%02X\n", st.ErrorCode)
	} else {
		fmt.Printf("error:        none\n")
	}
	return nil
}

func runPorts() error {
	ports := transport.ListSerialPorts()
	if len(ports) == 0 {
		fmt.Println("No candidate serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func parseMode(s string) (dialect.Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return dialect.ModeAuto, nil
	case "image":
		return dialect.ModeImage, nil
	case "text":
		return dialect.ModeText, nil
	}
	return dialect.ModeAuto, fmt.Errorf("unknown mode %q (want auto, image, or text)", s)
}

func parseBarcodeFormat(s string) (render.BarcodeFormat, error) {
	switch strings.ToUpper(s) {
	case "", "CODE128":
		return render.FormatCode128, nil
	case "CODE39":
		return render.FormatCode39, nil
	case "EAN13":
		return render.FormatEAN13, nil
	case "EAN8":
		return render.FormatEAN8, nil
	}
	return "", fmt.Errorf("unknown barcode format %q (want CODE128, CODE39, EAN13, or EAN8)", s)
}

// parseUSBID parses vid:pid hex pairs like 0483:5740. The word any
// selects the first printer-class device on the bus.
func parseUSBID(id string) (uint16, uint16, error) {
	if strings.EqualFold(id, "any") {
		return 0, 0, nil
	}
	parts := strings.Split(id, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("usb id must be vid:pid hex or any, got %q", id)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad USB vendor id %q", parts[0])
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad USB product id %q", parts[1])
	}
	return uint16(vid), uint16(pid), nil
}

func splitHostPort(addr string) (string, int, error) {
	if !strings.Contains(addr, ":") {
		return addr, 0, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("bad network address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("bad network port %q", portStr)
	}
	return host, port, nil
}
