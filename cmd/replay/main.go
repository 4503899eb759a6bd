// The replay worker feeds the pipeline from a recorded video, pairing each
// frame with previously saved detection records when they exist. With no
// video configured it generates a synthetic scene, which is enough to
// exercise every downstream stage.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
	"golang.org/x/term"

	"github.com/watchgrid/watchgrid/internal/config"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/netio"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/store"
	"github.com/watchgrid/watchgrid/internal/vision"
)

func main() {
	closer, err := monitoring.SetupStageLog("replay")
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load("replay")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	client := netio.NewClient("replay", cfg.ServerAddr, cfg.QueueSize)
	go client.Run(ctx)

	if cfg.VideoPath == "" {
		runSynthetic(ctx, cfg, client)
	} else {
		runVideo(ctx, cfg, client)
	}
	log.Println("replay finished")
}

// camName derives the camera id from the video file name; camera ids must
// start with a letter.
func camName(videoPath string) string {
	if videoPath == "" {
		return "v1"
	}
	base := filepath.Base(videoPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		return "v" + name
	}
	return name
}

func newBar(total int, label string) *progressbar.ProgressBar {
	width := 40
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 40 {
		width = cols / 2
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(width),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
}

// runVideo streams a recorded video, attaching saved detection records when
// a sibling .rec file exists.
func runVideo(ctx context.Context, cfg config.Stage, client *netio.Client) {
	capture, err := gocv.VideoCaptureFile(cfg.VideoPath)
	if err != nil {
		log.Fatalf("open video %s: %v", cfg.VideoPath, err)
	}
	defer capture.Close()

	var records []store.Record
	recPath := strings.TrimSuffix(cfg.VideoPath, filepath.Ext(cfg.VideoPath)) + ".rec"
	if recs, err := store.ReadRecords(recPath); err == nil {
		records = recs
		monitoring.Logf("[Replay] loaded %d detection records from %s", len(recs), recPath)
	}

	cam := camName(cfg.VideoPath)
	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	bar := newBar(total, cam)
	interval := time.Second / time.Duration(cfg.FPS)

	mat := gocv.NewMat()
	defer mat.Close()

	for frameID := 0; ctx.Err() == nil; frameID++ {
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			break
		}
		frame, err := vision.FrameFromMat(mat)
		if err != nil {
			monitoring.Logf("[Replay] skip frame %d: %v", frameID, err)
			continue
		}

		pkt := &packet.FramePacket{CamID: cam, FrameID: frameID, Image: frame}
		if frameID < len(records) {
			pkt.Meta = records[frameID].Meta
		}
		client.Send(pkt)
		bar.Add(1)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// runSynthetic emits two people walking toward each other, one with a bag,
// so tracker, batcher, spatial actor and composer all see real work.
func runSynthetic(ctx context.Context, cfg config.Stage, client *netio.Client) {
	const frames = 600
	cam := "v1"
	bar := newBar(frames, cam+" (synthetic)")
	interval := time.Second / time.Duration(cfg.FPS)

	for frameID := 0; frameID < frames && ctx.Err() == nil; frameID++ {
		step := frameID % 150
		x1 := 60 + step*2
		x2 := 540 - step*2

		pkt := &packet.FramePacket{
			CamID:   cam,
			FrameID: frameID,
			Meta: []packet.Detection{
				{
					Box: packet.Box{x1, 140, x1 + 40, 260}, Label: "person", Score: 0.9,
					Feature: []float64{0.9, 0.1, 0.2},
				},
				{
					Box: packet.Box{x2, 150, x2 + 40, 270}, Label: "person", Score: 0.9,
					Feature: []float64{0.1, 0.9, 0.3},
				},
				{Box: packet.Box{x1 + 20, 200, x1 + 55, 240}, Label: "bag", Score: 0.7},
			},
		}
		client.Send(pkt)
		bar.Add(1)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
