// Package config loads per-stage configuration from ini files.
//
// Each worker binary reads config/<stage>.ini relative to the working
// directory (override the directory with WATCHGRID_CONFIG_DIR). A missing
// file yields the defaults, so every binary runs with no arguments.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Stage holds the configuration record every worker reads at startup.
type Stage struct {
	SaveData   bool
	UploadData bool
	QueueSize  int

	LocalAddr  string // host:port this stage listens on
	ServerAddr string // host:port of the next hop

	TrackLabels  []string
	AttachLabels []string

	TopoPath   string
	ActDefPath string
	LabelMap   string

	TrackModelPath string
	ActModelPath   string
	ActClassPath   string

	NNBatch  int
	TubeSize int

	ImgWidth  int
	ImgHeight int

	DBPath  string
	WebAddr string

	VideoPath string
	FPS       int
}

// Defaults returns the built-in configuration for a stage.
func Defaults(stage string) Stage {
	s := Stage{
		SaveData:     true,
		UploadData:   true,
		QueueSize:    128,
		TrackLabels:  []string{"person", "car"},
		AttachLabels: []string{"bike", "bag"},
		TopoPath:     "config/camera_topology.txt",
		ActDefPath:   "config/act_def.txt",
		LabelMap:     "config/label_mapping.txt",
		ActClassPath: "config/act_classes.txt",
		NNBatch:      4,
		TubeSize:     32,
		ImgWidth:     640,
		ImgHeight:    480,
		DBPath:       "res/acts.db",
		WebAddr:      "localhost:50088",
		FPS:          20,
	}
	switch stage {
	case "tracker":
		s.LocalAddr = "localhost:50051"
		s.ServerAddr = "localhost:50052"
	case "act":
		s.LocalAddr = "localhost:50052"
		s.ServerAddr = "localhost:50053"
	case "web":
		s.LocalAddr = "localhost:50053"
		s.ServerAddr = ""
		s.UploadData = false
	case "replay":
		s.LocalAddr = ""
		s.ServerAddr = "localhost:50051"
		s.QueueSize = 64
	}
	return s
}

// Dir returns the configuration directory.
func Dir() string {
	if d := os.Getenv("WATCHGRID_CONFIG_DIR"); d != "" {
		return d
	}
	return "config"
}

// Load reads config/<stage>.ini over the defaults. A missing file is fine;
// a malformed one is a startup error.
func Load(stage string) (Stage, error) {
	s := Defaults(stage)
	path := filepath.Join(Dir(), stage+".ini")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return s, fmt.Errorf("load %s: %w", path, err)
	}
	sec := cfg.Section("")

	s.SaveData = sec.Key("save_data").MustBool(s.SaveData)
	s.UploadData = sec.Key("upload_data").MustBool(s.UploadData)
	s.QueueSize = sec.Key("queue_size").MustInt(s.QueueSize)
	s.LocalAddr = sec.Key("local_addr").MustString(s.LocalAddr)
	s.ServerAddr = sec.Key("server_addr").MustString(s.ServerAddr)
	s.TrackLabels = keyList(sec, "track_labels", s.TrackLabels)
	s.AttachLabels = keyList(sec, "attach_labels", s.AttachLabels)
	s.TopoPath = sec.Key("topo_path").MustString(s.TopoPath)
	s.ActDefPath = sec.Key("act_def_path").MustString(s.ActDefPath)
	s.LabelMap = sec.Key("label_mapping").MustString(s.LabelMap)
	s.TrackModelPath = sec.Key("track_model_path").MustString(s.TrackModelPath)
	s.ActModelPath = sec.Key("act_model_path").MustString(s.ActModelPath)
	s.ActClassPath = sec.Key("act_class_path").MustString(s.ActClassPath)
	s.NNBatch = sec.Key("nn_batch").MustInt(s.NNBatch)
	s.TubeSize = sec.Key("tube_size").MustInt(s.TubeSize)
	s.ImgWidth = sec.Key("img_width").MustInt(s.ImgWidth)
	s.ImgHeight = sec.Key("img_height").MustInt(s.ImgHeight)
	s.DBPath = sec.Key("db_path").MustString(s.DBPath)
	s.WebAddr = sec.Key("web_addr").MustString(s.WebAddr)
	s.VideoPath = sec.Key("video_path").MustString(s.VideoPath)
	s.FPS = sec.Key("fps").MustInt(s.FPS)

	if s.QueueSize <= 0 {
		return s, fmt.Errorf("%s: queue_size must be positive, got %d", path, s.QueueSize)
	}
	if s.FPS <= 0 {
		return s, fmt.Errorf("%s: fps must be positive, got %d", path, s.FPS)
	}
	return s, nil
}

func keyList(sec *ini.Section, key string, def []string) []string {
	raw := sec.Key(key).String()
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
