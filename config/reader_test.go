package config

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestFromReaderValidate(t *testing.T) {
	var cfg LineFitConfig
	err := FromReader("somepath.json", strings.NewReader(""), &cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EOF")

	err = FromReader("somepath.json", strings.NewReader(`{"points_file": 1}`), &cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unmarshal")

	err = FromReader("somepath.json", strings.NewReader(`{}`), &cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"points_file" is required`)

	cfg = LineFitConfig{}
	err = FromReader("", strings.NewReader(`{"points_file": "pts.csv"}`), &cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, LineFitConfig{PointsFile: "pts.csv", Seed: 1, NeighborDist: 1})

	var pose SolvePoseConfig
	err = FromReader("dir/pose.yml", strings.NewReader("camera_file: cam.json\ncorners_file: c.csv\npose_solver:\n  max_iterations: -1\n"), &pose)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pose_solver")
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_iterations must not be negative")
}
