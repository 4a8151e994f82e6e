package main

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"time"

	goutils "go.viam.com/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/mobilerobots/tagslam/detection"
	"github.com/mobilerobots/tagslam/engine"
	"github.com/mobilerobots/tagslam/landmarks"
	"github.com/mobilerobots/tagslam/noise"
	"github.com/mobilerobots/tagslam/persistence"
	"github.com/mobilerobots/tagslam/ports"
	"github.com/mobilerobots/tagslam/tlog"
	"github.com/mobilerobots/tagslam/tsconfig"
)

const (
	extrinsicsRetryInterval = 500 * time.Millisecond
	extrinsicsMaxAttempts   = 20
)

var runFlags = struct {
	odomPath       string
	detectionsPath string
	extrinsicsPath string
	outPath        string
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the engine off a recorded odometry/detection session",
	Run:   runRun,
}

func init() {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringVar(&runFlags.odomPath, "odom", "", "path to the recorded odometry session CSV (time,x,y,theta)")
	fs.StringVar(&runFlags.detectionsPath, "detections", "", "path to the recorded detection session CSV (time,camera,tag_id,x,y)")
	fs.StringVar(&runFlags.extrinsicsPath, "extrinsics", "", "path to the camera static-transform CSV (camera,tx,ty,tz,zx,zy,zz)")
	fs.StringVar(&runFlags.outPath, "out", "", "path to write the refined-odom CSV; empty disables logging")
	runCmd.Flags().AddFlagSet(fs)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	logger := tlog.NewLogger("tagslamd", zapcore.InfoLevel)

	conf, err := tsconfig.Load(configPath)
	if err != nil {
		log.Fatalf("tagslamd: %v", err)
	}
	warnings, err := conf.Validate()
	if err != nil {
		log.Fatalf("tagslamd: %v", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	noiseReg, err := noise.NewRegistry(
		conf.NoiseModels.Odometry,
		conf.NoiseModels.Prior,
		conf.NoiseModels.BearingRange,
		conf.NoiseModels.Point,
		conf.NoiseModels.LoopClosure,
	)
	if err != nil {
		log.Fatalf("tagslamd: building noise registry: %v", err)
	}

	table := landmarks.Empty()
	if conf.PathToLoadLandmarkCSV != "" {
		table, err = landmarks.LoadCSV(conf.PathToLoadLandmarkCSV)
		if err != nil {
			log.Fatalf("tagslamd: loading prior landmark table: %v", err)
		}
	}

	var confirm ports.ConfirmationPort
	var rng *rand.Rand
	if conf.UsePFInitialise {
		confirm = autoConfirm{}
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	eng := engine.New(engine.ConfigFromTSConfig(conf), logger, noiseReg, table, confirm, rng)

	if runFlags.extrinsicsPath != "" {
		if err := resolveExtrinsics(context.Background(), eng, runFlags.extrinsicsPath, logger); err != nil {
			log.Fatalf("tagslamd: %v", err)
		}
	}

	if runFlags.odomPath == "" {
		log.Fatalf("tagslamd: --odom is required")
	}
	odomSamples, err := persistence.ReadOdomCSV(runFlags.odomPath)
	if err != nil {
		log.Fatalf("tagslamd: %v", err)
	}

	var detSamples []persistence.DetectionSample
	if runFlags.detectionsPath != "" {
		detSamples, err = persistence.ReadDetectionCSV(runFlags.detectionsPath)
		if err != nil {
			log.Fatalf("tagslamd: %v", err)
		}
	}
	sort.Slice(detSamples, func(i, j int) bool { return detSamples[i].Time < detSamples[j].Time })

	var refinedLog *persistence.OdomLog
	if runFlags.outPath != "" {
		refinedLog, err = persistence.NewOdomLog(runFlags.outPath)
		if err != nil {
			log.Fatalf("tagslamd: %v", err)
		}
		defer refinedLog.Close()
	}

	detIdx := 0
	var lastOut engine.Outputs
	for _, sample := range odomSamples {
		byCamera := map[string][]detection.Detection{}
		for detIdx < len(detSamples) && detSamples[detIdx].Time <= sample.Time {
			d := detSamples[detIdx]
			byCamera[d.Camera] = append(byCamera[d.Camera], detection.Detection{TagID: d.TagID, Position: d.Position})
			detIdx++
		}
		for camera, dets := range byCamera {
			eng.PublishDetections(camera, dets)
		}

		out, err := eng.Tick(sample.Pose)
		if err != nil {
			log.Fatalf("tagslamd: tick at t=%.3f: %v", sample.Time, err)
		}
		if !out.Accepted {
			continue
		}
		lastOut = out
		logger.Infow("tick", "t", sample.Time, "keyframe", out.Keyframe, "visIndex", out.VisIndex, "poseIndex", out.PoseIndex)
		if out.LoopClosure != nil {
			logger.Infow("loop closure", "from", out.LoopClosure.FromIndex, "to", out.LoopClosure.ToIndex)
		}
		if refinedLog != nil {
			if err := refinedLog.Append(sample.Time, out.RefinedPose); err != nil {
				log.Fatalf("tagslamd: writing refined odom log: %v", err)
			}
		}
	}

	if conf.SaveTagLocation && conf.PathToSaveLandmarkCSV != "" {
		records := make([]persistence.LandmarkRecord, len(lastOut.Landmarks))
		for i, lm := range lastOut.Landmarks {
			records[i] = persistence.LandmarkRecord{ID: lm.TagID, Position: lm.Position}
		}
		if err := persistence.SaveLandmarkCSV(conf.PathToSaveLandmarkCSV, records); err != nil {
			log.Fatalf("tagslamd: saving landmark csv: %v", err)
		}
	}
}

type autoConfirm struct{}

func (autoConfirm) Poll() (decided bool, accept bool) { return true, true }

// resolveExtrinsics reads the camera static-transform CSV with a bounded
// retry loop (spec.md #5: "bounded retries with a 0.5s interval, up to
// 20 attempts"), the same goutils.SelectContextOrWait pattern
// services/slam/builtin/builtin.go uses to wait out a camera that
// hasn't produced data yet.
func resolveExtrinsics(ctx context.Context, eng *engine.Engine, path string, logger interface {
	Warnw(string, ...interface{})
}) error {
	var entries []persistence.ExtrinsicEntry
	var err error
	for attempt := 0; attempt < extrinsicsMaxAttempts; attempt++ {
		entries, err = persistence.LoadExtrinsicsCSV(path)
		if err == nil {
			break
		}
		logger.Warnw("extrinsics not ready yet, retrying", "attempt", attempt, "err", err.Error())
		if !goutils.SelectContextOrWait(ctx, extrinsicsRetryInterval) {
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		eng.SetExtrinsic(e.Camera, detection.ExtractPlanarExtrinsic(e.Translation, e.RotatedZAxis))
	}
	return nil
}
