// Package config defines the run configurations of every command and how they are read and
// validated.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	rutils "github.com/opencsp/opencsp-go/utils"
)

// PoseSolverConfig tunes the iterative optic pose solver. Zero values select defaults.
type PoseSolverConfig struct {
	MaxIterations         int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	ReprojectionTolerance float64 `json:"reprojection_tolerance_px,omitempty" yaml:"reprojection_tolerance_px,omitempty"`
	DistanceTolerance     float64 `json:"distance_tolerance,omitempty" yaml:"distance_tolerance,omitempty"`
	MinImprovement        float64 `json:"min_improvement,omitempty" yaml:"min_improvement,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *PoseSolverConfig) Validate(path string) error {
	if cfg == nil {
		return nil
	}
	if cfg.MaxIterations < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_iterations must not be negative"))
	}
	if cfg.ReprojectionTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("reprojection_tolerance_px must not be negative"))
	}
	if cfg.DistanceTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("distance_tolerance must not be negative"))
	}
	if cfg.MinImprovement < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_improvement must not be negative"))
	}
	return nil
}

// FringeConfig describes the projected fringe sequence.
type FringeConfig struct {
	PeriodsX    []float64 `json:"periods_x" yaml:"periods_x"`
	PeriodsY    []float64 `json:"periods_y" yaml:"periods_y"`
	PhaseShifts int       `json:"phase_shifts,omitempty" yaml:"phase_shifts,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *FringeConfig) Validate(path string) error {
	if len(cfg.PeriodsX) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "periods_x")
	}
	if len(cfg.PeriodsY) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "periods_y")
	}
	for _, periods := range [][]float64{cfg.PeriodsX, cfg.PeriodsY} {
		for i, p := range periods {
			if p <= 0 {
				return utils.NewConfigValidationError(path, errors.Errorf("period %d must be positive, got %f", i, p))
			}
		}
		if periods[0] > 1 {
			return utils.NewConfigValidationError(path, errors.New("the coarsest period must not exceed one cycle per screen"))
		}
	}
	if cfg.PhaseShifts != 0 && cfg.PhaseShifts < 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("phase_shifts must be at least 3, got %d", cfg.PhaseShifts))
	}
	return nil
}

// LineFitConfig configures the fit-line command.
type LineFitConfig struct {
	PointsFile   string  `json:"points_file" yaml:"points_file"`
	Seed         int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	NeighborDist float64 `json:"neighbor_dist,omitempty" yaml:"neighbor_dist,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *LineFitConfig) Validate(path string) error {
	if cfg.PointsFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "points_file")
	}
	if cfg.NeighborDist < 0 {
		return utils.NewConfigValidationError(path, errors.New("neighbor_dist must not be negative"))
	}
	if cfg.NeighborDist == 0 {
		cfg.NeighborDist = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return nil
}

func (cfg *LineFitConfig) resolvePaths(base string) {
	cfg.PointsFile = rutils.ResolvePath(base, cfg.PointsFile)
}

// MeasurementConfig is the measured distance from a point on the optic to the screen.
type MeasurementConfig struct {
	// MeasurePoint is in the optic frame.
	MeasurePoint [3]float64 `json:"measure_point" yaml:"measure_point"`
	Distance     float64    `json:"distance" yaml:"distance"`
}

// SolvePoseConfig configures the solve-pose command.
type SolvePoseConfig struct {
	CameraFile string `json:"camera_file" yaml:"camera_file"`
	// CornersFile is a CSV of optic-frame corners and their pixels: x,y,z,u,v.
	CornersFile   string             `json:"corners_file" yaml:"corners_file"`
	Centroid      *[2]float64        `json:"centroid,omitempty" yaml:"centroid,omitempty"`
	Measurement   *MeasurementConfig `json:"measurement,omitempty" yaml:"measurement,omitempty"`
	VCamScreenCam [3]float64         `json:"v_cam_screen_cam" yaml:"v_cam_screen_cam"`
	PoseSolver    *PoseSolverConfig  `json:"pose_solver,omitempty" yaml:"pose_solver,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *SolvePoseConfig) Validate(path string) error {
	if cfg.CameraFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "camera_file")
	}
	if cfg.CornersFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "corners_file")
	}
	if cfg.Measurement != nil && cfg.Measurement.Distance <= 0 {
		return utils.NewConfigValidationError(joinPath(path, "measurement"), errors.New("distance must be positive"))
	}
	return cfg.PoseSolver.Validate(joinPath(path, "pose_solver"))
}

func (cfg *SolvePoseConfig) resolvePaths(base string) {
	cfg.CameraFile = rutils.ResolvePath(base, cfg.CameraFile)
	cfg.CornersFile = rutils.ResolvePath(base, cfg.CornersFile)
}

// SceneReconstructionConfig configures the reconstruct-scene command.
type SceneReconstructionConfig struct {
	CameraFile      string `json:"camera_file" yaml:"camera_file"`
	KnownPointsFile string `json:"known_points_file" yaml:"known_points_file"`
	// Exactly one of ImageGlob and ObservationsFile is set.
	ImageGlob          string  `json:"image_glob,omitempty" yaml:"image_glob,omitempty"`
	ObservationsFile   string  `json:"observations_file,omitempty" yaml:"observations_file,omitempty"`
	PointPairDistances string  `json:"point_pair_distances_file,omitempty" yaml:"point_pair_distances_file,omitempty"`
	AlignmentPoints    string  `json:"alignment_points_file,omitempty" yaml:"alignment_points_file,omitempty"`
	OutputDir          string  `json:"output_dir" yaml:"output_dir"`
	MinPointsPerImage  int     `json:"min_points_per_image,omitempty" yaml:"min_points_per_image,omitempty"`
	RefineIterations   int     `json:"refine_iterations,omitempty" yaml:"refine_iterations,omitempty"`
	RefineTolerance    float64 `json:"refine_tolerance,omitempty" yaml:"refine_tolerance,omitempty"`
	WritePCD           bool    `json:"write_pcd,omitempty" yaml:"write_pcd,omitempty"`
	Figures            bool    `json:"figures,omitempty" yaml:"figures,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *SceneReconstructionConfig) Validate(path string) error {
	if cfg.CameraFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "camera_file")
	}
	if cfg.KnownPointsFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "known_points_file")
	}
	if (cfg.ImageGlob == "") == (cfg.ObservationsFile == "") {
		return utils.NewConfigValidationError(path, errors.New("exactly one of image_glob and observations_file is required"))
	}
	if cfg.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	if cfg.MinPointsPerImage != 0 && cfg.MinPointsPerImage < 4 {
		return utils.NewConfigValidationError(path, errors.Errorf("min_points_per_image must be at least 4, got %d", cfg.MinPointsPerImage))
	}
	if cfg.RefineIterations < 0 || cfg.RefineTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("refinement settings must not be negative"))
	}
	return nil
}

func (cfg *SceneReconstructionConfig) resolvePaths(base string) {
	cfg.CameraFile = rutils.ResolvePath(base, cfg.CameraFile)
	cfg.KnownPointsFile = rutils.ResolvePath(base, cfg.KnownPointsFile)
	cfg.ImageGlob = rutils.ResolvePath(base, cfg.ImageGlob)
	cfg.ObservationsFile = rutils.ResolvePath(base, cfg.ObservationsFile)
	cfg.PointPairDistances = rutils.ResolvePath(base, cfg.PointPairDistances)
	cfg.AlignmentPoints = rutils.ResolvePath(base, cfg.AlignmentPoints)
	cfg.OutputDir = rutils.ResolvePath(base, cfg.OutputDir)
}

// CaptureConfig locates one display calibration capture.
type CaptureConfig struct {
	Name string `json:"name" yaml:"name"`
	Dir  string `json:"dir" yaml:"dir"`
	// MarkersFile is an optional observation CSV used instead of detecting markers.
	MarkersFile string `json:"markers_file,omitempty" yaml:"markers_file,omitempty"`
}

// DisplayCalibrationConfig configures the calibrate-display command.
type DisplayCalibrationConfig struct {
	Name                 string            `json:"name" yaml:"name"`
	CameraFile           string            `json:"camera_file" yaml:"camera_file"`
	PointLocationsFile   string            `json:"point_locations_file" yaml:"point_locations_file"`
	ScreenCalPointsFile  string            `json:"screen_cal_points_file,omitempty" yaml:"screen_cal_points_file,omitempty"`
	ResolutionXY         [2]int            `json:"resolution_xy" yaml:"resolution_xy"`
	Captures             []CaptureConfig   `json:"captures" yaml:"captures"`
	Fringes              FringeConfig      `json:"fringes" yaml:"fringes"`
	MaskThreshold        float64           `json:"mask_threshold,omitempty" yaml:"mask_threshold,omitempty"`
	MaxReprojectionError float64           `json:"max_reprojection_error_px,omitempty" yaml:"max_reprojection_error_px,omitempty"`
	PoseSolver           *PoseSolverConfig `json:"pose_solver,omitempty" yaml:"pose_solver,omitempty"`
	OutputDir            string            `json:"output_dir" yaml:"output_dir"`
}

// Validate ensures all parts of the config are valid.
func (cfg *DisplayCalibrationConfig) Validate(path string) error {
	if cfg.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if cfg.CameraFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "camera_file")
	}
	if cfg.PointLocationsFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "point_locations_file")
	}
	if cfg.ResolutionXY[0] < 2 || cfg.ResolutionXY[1] < 2 {
		return utils.NewConfigValidationError(path, errors.Errorf("resolution_xy must be at least 2x2, got %v", cfg.ResolutionXY))
	}
	if len(cfg.Captures) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "captures")
	}
	for i := range cfg.Captures {
		if cfg.Captures[i].Dir == "" {
			return utils.NewConfigValidationFieldRequiredError(joinPath(path, fmt.Sprintf("captures.%d", i)), "dir")
		}
		if cfg.Captures[i].Name == "" {
			cfg.Captures[i].Name = fmt.Sprintf("capture_%d", i)
		}
	}
	if err := cfg.Fringes.Validate(joinPath(path, "fringes")); err != nil {
		return err
	}
	if cfg.MaskThreshold < 0 || cfg.MaxReprojectionError < 0 {
		return utils.NewConfigValidationError(path, errors.New("thresholds must not be negative"))
	}
	if cfg.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	return cfg.PoseSolver.Validate(joinPath(path, "pose_solver"))
}

func (cfg *DisplayCalibrationConfig) resolvePaths(base string) {
	cfg.CameraFile = rutils.ResolvePath(base, cfg.CameraFile)
	cfg.PointLocationsFile = rutils.ResolvePath(base, cfg.PointLocationsFile)
	cfg.ScreenCalPointsFile = rutils.ResolvePath(base, cfg.ScreenCalPointsFile)
	cfg.OutputDir = rutils.ResolvePath(base, cfg.OutputDir)
	for i := range cfg.Captures {
		cfg.Captures[i].Dir = rutils.ResolvePath(base, cfg.Captures[i].Dir)
		cfg.Captures[i].MarkersFile = rutils.ResolvePath(base, cfg.Captures[i].MarkersFile)
	}
}

// FringeDecodeConfig configures the decode-fringes command.
type FringeDecodeConfig struct {
	CaptureDir    string       `json:"capture_dir" yaml:"capture_dir"`
	Fringes       FringeConfig `json:"fringes" yaml:"fringes"`
	MaskThreshold float64      `json:"mask_threshold,omitempty" yaml:"mask_threshold,omitempty"`
	OutputFile    string       `json:"output_file" yaml:"output_file"`
}

// Validate ensures all parts of the config are valid.
func (cfg *FringeDecodeConfig) Validate(path string) error {
	if cfg.CaptureDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "capture_dir")
	}
	if cfg.OutputFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_file")
	}
	if cfg.MaskThreshold < 0 {
		return utils.NewConfigValidationError(path, errors.New("mask_threshold must not be negative"))
	}
	return cfg.Fringes.Validate(joinPath(path, "fringes"))
}

func (cfg *FringeDecodeConfig) resolvePaths(base string) {
	cfg.CaptureDir = rutils.ResolvePath(base, cfg.CaptureDir)
	cfg.OutputFile = rutils.ResolvePath(base, cfg.OutputFile)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
