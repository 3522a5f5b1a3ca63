package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/capture"
	"gaussian-blur-lab/internal/config"
	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/pipeline"
	"gaussian-blur-lab/internal/prompt"
	"gaussian-blur-lab/internal/roi"
	"gaussian-blur-lab/internal/shutdown"
	"gaussian-blur-lab/internal/timing"

	"gocv.io/x/gocv"
)

const (
	AppName    = "blurlab"
	AppVersion = "1.0.0"
)

var errUsage = errors.New("usage error")

var strategies = map[string]pipeline.Strategy{
	"compare":     pipeline.Compare{},
	"interactive": pipeline.Interactive{},
	"roi":         pipeline.Region{},
	"iterate":     pipeline.Iterate{},
	"sweep":       pipeline.Sweep{},
	"webcam":      pipeline.Stream{},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds raw flag values; only flags given on the command line
// override the configuration.
type options struct {
	configPath  string
	kernel      blur.KernelSize
	sigma       float64
	iterations  int
	sigmas      []blur.Sigma
	camera      int
	region      string
	out         string
	blurredOut  string
	quality     int
	display     bool
	logLevel    string
	maxAttempts int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	mode := args[0]
	strategy, ok := strategies[mode]
	if !ok {
		fmt.Fprintf(stderr, "unknown mode %q\n\n", mode)
		usage(stderr)
		return 2
	}

	cfg, figurePath, err := parseConfig(mode, args[1:], stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "%s: %v\n", AppName, err)
		return 2
	}

	log := logger.NewConsoleLogger(logger.ParseLevel(cfg.LogLevel))
	log.Info("Main", "starting", map[string]interface{}{
		"version":      AppVersion,
		"mode":         mode,
		"go_version":   runtime.Version(),
		"gocv_version": gocv.Version(),
		"opencv":       gocv.OpenCVVersion(),
	})

	mgr := shutdown.NewManager(context.Background(), log)
	stopListening := mgr.Listen()
	defer stopListening()
	defer mgr.Shutdown()

	tracker := timing.NewTracker()

	var viewer capture.Viewer
	if cfg.Display {
		wv := capture.NewWindowViewer(log)
		mgr.Register(wv)
		viewer = wv
	} else {
		viewer = capture.NewHeadlessViewer(log)
	}

	env := &pipeline.Env{
		Config:   cfg,
		Logger:   log,
		Viewer:   viewer,
		Prompter: prompt.New(stdin, stdout, cfg.MaxAttempts),
		Filter:   blur.NewGaussianFilter(log, tracker),
		Images:   capture.NewImageLoader(log, tracker),
		OpenCamera: func(index int) (capture.FrameSource, error) {
			cam, err := capture.OpenCamera(index, log)
			if err != nil {
				return nil, err
			}
			mgr.Register(cam)
			return cam, nil
		},
		FigurePath: figurePath,
	}

	if err := pipeline.Run(mgr.Context(), env, strategy); err != nil {
		log.Error("Main", err, map[string]interface{}{"mode": mode})
		fmt.Fprintf(stderr, "%s: %v\n", AppName, err)
		return 1
	}

	return 0
}

// parseConfig layers defaults, the optional config file, flags and the
// positional image path, in that order. The returned figure path is empty
// when the mode should not write a figure.
func parseConfig(mode string, args []string, stderr io.Writer) (*config.Config, string, error) {
	defaults := config.ForMode(mode)
	opts := options{
		kernel:      defaults.Blur.Kernel,
		sigma:       float64(defaults.Blur.Sigma),
		iterations:  defaults.Iterations,
		sigmas:      defaults.Sigmas,
		camera:      defaults.Camera.Index,
		quality:     defaults.Figure.Quality,
		display:     defaults.Display,
		logLevel:    defaults.LogLevel,
		maxAttempts: defaults.MaxAttempts,
	}

	fs := flag.NewFlagSet(AppName+" "+mode, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.Var(blur.KernelFlag{Size: &opts.kernel}, "kernel", "kernel size as two odd integers > 1, e.g. 5,5")
	fs.Float64Var(&opts.sigma, "sigma", opts.sigma, "Gaussian sigma; 0 derives it from the kernel size")
	fs.IntVar(&opts.iterations, "iterations", opts.iterations, "number of blur passes (iterate mode)")
	fs.Var(blur.SigmasFlag{Sigmas: &opts.sigmas}, "sigmas", "comma-separated sigmas, one panel each (sweep mode)")
	fs.IntVar(&opts.camera, "camera", opts.camera, "camera device index (webcam mode)")
	fs.StringVar(&opts.region, "roi", "", `region "x y w h" to blur (roi mode); asked on the console when omitted`)
	fs.StringVar(&opts.out, "out", "", "figure output path (compare defaults to "+defaults.Figure.OutputPath+", sweep to "+defaults.Figure.SweepPath+")")
	fs.StringVar(&opts.blurredOut, "save", "", "also write the final blurred image to this path")
	fs.IntVar(&opts.quality, "quality", opts.quality, "JPEG quality of the saved figure")
	fs.BoolVar(&opts.display, "display", opts.display, "open image windows")
	fs.StringVar(&opts.logLevel, "log-level", opts.logLevel, "debug, info, warn or error; unset uses $LOG_LEVEL, then info")
	fs.IntVar(&opts.maxAttempts, "max-attempts", opts.maxAttempts, "give up after this many invalid console answers; 0 never gives up")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s [flags] [image]\n\nFlags:\n", AppName, mode)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	if fs.NArg() > 1 {
		return nil, "", fmt.Errorf("%w: expected at most one image path, got %d", errUsage, fs.NArg())
	}

	cfg, err := config.LoadMode(mode, opts.configPath)
	if err != nil {
		return nil, "", err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "kernel":
			cfg.Blur.Kernel = opts.kernel
		case "sigma":
			cfg.Blur.Sigma = blur.Sigma(opts.sigma)
		case "iterations":
			cfg.Iterations = opts.iterations
		case "sigmas":
			cfg.Sigmas = opts.sigmas
		case "camera":
			cfg.Camera.Index = opts.camera
		case "roi":
			r, err := roi.ParseRect(opts.region)
			if err != nil {
				flagErr = fmt.Errorf("invalid -roi: %w", err)
				return
			}
			cfg.Region = r
		case "out":
			cfg.Figure.OutputPath = opts.out
		case "save":
			cfg.Figure.BlurredPath = opts.blurredOut
		case "quality":
			cfg.Figure.Quality = opts.quality
		case "display":
			cfg.Display = opts.display
		case "log-level":
			cfg.LogLevel = opts.logLevel
		case "max-attempts":
			cfg.MaxAttempts = opts.maxAttempts
		}
	})
	if flagErr != nil {
		return nil, "", flagErr
	}

	if fs.NArg() == 1 {
		cfg.ImagePath = fs.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	figurePath := ""
	switch {
	case opts.out != "" || mode == "compare":
		figurePath = cfg.Figure.OutputPath
	case mode == "sweep":
		figurePath = cfg.Figure.SweepPath
	}

	return cfg, figurePath, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: %s <mode> [flags] [image]

Modes:
  compare      blur the image and save a side-by-side comparison figure
  interactive  ask for kernel size and sigma, then blur
  roi          blur a region of the image
  iterate      blur the image repeatedly and show every pass
  sweep        blur once per sigma and save the panels side by side
  webcam       blur camera frames live; press q to quit

The image defaults to test.png. Run "%s <mode> -h" for the flags of a mode.
`, AppName, AppName)
}
