// Package tsconfig loads and validates the tagslam engine configuration
// enumerated in spec.md #6. Loading follows the teacher's
// mapstructure-decode idiom from services/slam/builtin/builtin.go's
// AttrConfig, and file/env sourcing follows rotblauer-catd's
// viper-backed daemon config (params + daemon/rgeod).
package tsconfig

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ConfigError distinguishes fatal startup configuration problems (spec.md
// #7 "Config error") from recoverable ones, so cmd/tagslamd can decide to
// exit(1) rather than log and continue.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{msg: errors.Errorf(format, args...).Error()}
}

// Camera is one entry of the spec.md #6 camera list.
type Camera struct {
	Name  string `mapstructure:"name" json:"name"`
	Topic string `mapstructure:"topic" json:"topic"`
	Frame string `mapstructure:"frame" json:"frame"`
}

// NoiseModels bundles the five sigma vectors named in spec.md #4.2/#6.
type NoiseModels struct {
	Odometry     []float64 `mapstructure:"odometry" json:"odometry"`
	Prior        []float64 `mapstructure:"prior" json:"prior"`
	BearingRange []float64 `mapstructure:"bearing_range" json:"bearing_range"`
	Point        []float64 `mapstructure:"point" json:"point"`
	LoopClosure  []float64 `mapstructure:"loopClosureNoise" json:"loopClosureNoise"`
}

// Config is the full engine configuration surface from spec.md #6.
type Config struct {
	OdomTopic       string `mapstructure:"odom_topic" json:"odom_topic"`
	OdomFrame       string `mapstructure:"odom_frame" json:"odom_frame"`
	TrajectoryTopic string `mapstructure:"trajectory_topic" json:"trajectory_topic"`
	MapFrameID      string `mapstructure:"map_frame_id" json:"map_frame_id"`
	RobotFrame      string `mapstructure:"robot_frame" json:"robot_frame"`

	BatchOptimisation bool `mapstructure:"batch_optimisation" json:"batch_optimisation"`

	NoiseModels NoiseModels `mapstructure:"noise_models" json:"noise_models"`

	Add2GraphThreshold float64 `mapstructure:"add2graph_threshold" json:"add2graph_threshold"`

	MaxFactors     int  `mapstructure:"maxfactors" json:"maxfactors"`
	UsePruneBySize bool `mapstructure:"useprunebysize" json:"useprunebysize"`

	NParticles      int     `mapstructure:"N_particles" json:"N_particles"`
	UsePFInitialise bool    `mapstructure:"usePFinitialise" json:"usePFinitialise"`
	PFWaitTime      int     `mapstructure:"PFWaitTime" json:"PFWaitTime"`
	RngVar          float64 `mapstructure:"rngVar" json:"rngVar"`
	BrngVar         float64 `mapstructure:"brngVar" json:"brngVar"`

	UseLoopClosure               bool    `mapstructure:"useloopclosure" json:"useloopclosure"`
	HistoryKeyframeSearchRadius  float64 `mapstructure:"historyKeyframeSearchRadius" json:"historyKeyframeSearchRadius"`
	HistoryKeyframeSearchNum     uint64  `mapstructure:"historyKeyframeSearchNum" json:"historyKeyframeSearchNum"`
	RequiredReobservedLandmarks  int     `mapstructure:"requiredReobservedLandmarks" json:"requiredReobservedLandmarks"`

	DistanceThreshold float64 `mapstructure:"distanceThreshold" json:"distanceThreshold"`
	RotationThreshold float64 `mapstructure:"rotationThreshold" json:"rotationThreshold"`
	UseKeyframe       bool    `mapstructure:"usekeyframe" json:"usekeyframe"`

	StationaryPositionThreshold float64 `mapstructure:"stationary_position_threshold" json:"stationary_position_threshold"`
	StationaryRotationThreshold float64 `mapstructure:"stationary_rotation_threshold" json:"stationary_rotation_threshold"`

	PathToSaveLandmarkCSV string `mapstructure:"pathtosavelandmarkcsv" json:"pathtosavelandmarkcsv"`
	PathToLoadLandmarkCSV string `mapstructure:"pathtoloadlandmarkcsv" json:"pathtoloadlandmarkcsv"`
	SaveTagLocation       bool   `mapstructure:"savetaglocation" json:"savetaglocation"`
	UsePriorTagTable      bool   `mapstructure:"usepriortagtable" json:"usepriortagtable"`

	UseOutlierRemoval       bool    `mapstructure:"useoutlierremoval" json:"useoutlierremoval"`
	JumpCombinedThreshold   float64 `mapstructure:"jumpCombinedThreshold" json:"jumpCombinedThreshold"`
	OutlierRemovalStartIndex uint64 `mapstructure:"outlierRemovalStartIndex_" json:"outlierRemovalStartIndex_"`

	UseTrajSmoothing     bool   `mapstructure:"usetrajsmoothing" json:"usetrajsmoothing"`
	SmoothingWindow      int    `mapstructure:"smoothingwindow" json:"smoothingwindow"`
	SmoothingStartIndex  uint64 `mapstructure:"smoothingStartIndex_" json:"smoothingStartIndex_"`

	UseISAM2 bool `mapstructure:"useisam2" json:"useisam2"`

	TotalTags int `mapstructure:"total_tags" json:"total_tags"`

	Cameras []Camera `mapstructure:"cameras" json:"cameras"`
}

// Load reads configuration from path (any format viper supports: yaml,
// json, toml) with TAGSLAM_-prefixed environment overrides, and decodes
// it onto a Config the same way builtin.go's RuntimeConfigValidation
// decodes AttrConfig from a generic attribute map via mapstructure.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TAGSLAM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, configErrorf("tsconfig: reading %s: %v", path, err)
	}

	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &conf,
	})
	if err != nil {
		return nil, errors.Wrap(err, "tsconfig: building decoder")
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, configErrorf("tsconfig: decoding %s: %v", path, err)
	}
	return &conf, nil
}

// Validate applies spec.md #7's fatal-vs-warning split. Fatal problems
// are returned as a *ConfigError (missing required keys, malformed
// camera entries); everything else is returned in warnings for the
// caller to log and continue.
func (c *Config) Validate() (warnings []string, err error) {
	if c.OdomTopic == "" {
		return nil, configErrorf("tsconfig: odom_topic is required")
	}
	if c.RobotFrame == "" {
		return nil, configErrorf("tsconfig: robot_frame is required")
	}
	if len(c.Cameras) == 0 {
		return nil, configErrorf("tsconfig: at least one camera is required")
	}
	for i, cam := range c.Cameras {
		if cam.Name == "" || cam.Topic == "" || cam.Frame == "" {
			return nil, configErrorf("tsconfig: cameras[%d] is malformed: name/topic/frame all required", i)
		}
	}
	if len(c.NoiseModels.Odometry) == 0 || len(c.NoiseModels.Prior) == 0 ||
		len(c.NoiseModels.BearingRange) == 0 || len(c.NoiseModels.Point) == 0 ||
		len(c.NoiseModels.LoopClosure) == 0 {
		return nil, configErrorf("tsconfig: noise_models must set all five sigma vectors")
	}

	if c.MaxFactors <= 0 && c.UsePruneBySize {
		warnings = append(warnings, "tsconfig: useprunebysize is set but maxfactors <= 0; pruner will never fire")
	}
	if c.NParticles <= 0 && c.UsePFInitialise {
		warnings = append(warnings, "tsconfig: usePFinitialise is set but N_particles <= 0; bootstrap cannot run")
	}
	if c.UseTrajSmoothing && c.UseKeyframe {
		warnings = append(warnings, "tsconfig: usetrajsmoothing has no effect while usekeyframe is true")
	}
	if c.TotalTags <= 0 {
		warnings = append(warnings, "tsconfig: total_tags <= 0; prior-tag-table lookups will always miss")
	}
	return warnings, nil
}
