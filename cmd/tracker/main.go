// The tracker worker ingests detector output, assigns stable track ids,
// re-identifies tubes across cameras and uploads the result to the action
// node.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/watchgrid/watchgrid/internal/config"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/netio"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/pipeline"
	"github.com/watchgrid/watchgrid/internal/reid"
	"github.com/watchgrid/watchgrid/internal/store"
	"github.com/watchgrid/watchgrid/internal/track"
)

const resFolder = "res/tracker"

func main() {
	closer, err := monitoring.SetupStageLog("tracker")
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load("tracker")
	if err != nil {
		log.Fatal(err)
	}

	normalizer, err := packet.LoadNormalizer(cfg.LabelMap)
	if err != nil {
		log.Fatal(err)
	}
	topo, err := reid.LoadTopology(cfg.TopoPath, cfg.ImgWidth, cfg.ImgHeight)
	if err != nil {
		log.Fatal(err)
	}

	server, err := netio.NewServer("tracker", cfg.LocalAddr, cfg.QueueSize)
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

	go server.Run(ctx)

	client := netio.NewClient("tracker", cfg.ServerAddr, cfg.QueueSize)
	if cfg.UploadData {
		go client.Run(ctx)
	}

	reider := reid.New(topo)
	trackers := make(map[string]*track.MultiTracker)
	writers := make(map[string]*store.DataWriter)

	log.Println("tracker init done")
	pipeline.Consume(ctx, server.Queue(), func(pkt *packet.FramePacket) {
		for i := range pkt.Meta {
			pkt.Meta[i].Label = normalizer.Normalize(pkt.Meta[i].Label)
		}

		cid := pkt.CamID
		tracker, ok := trackers[cid]
		if !ok {
			tracker = track.NewMultiTracker(track.DefaultParams(), cfg.TrackLabels, cfg.AttachLabels)
			trackers[cid] = tracker
			monitoring.Logf("[Tracker] new camera %s", cid)
			if cfg.SaveData {
				w, err := store.NewDataWriter(resFolder, cid)
				if err != nil {
					monitoring.Logf("[Tracker] no data writer for %s: %v", cid, err)
				} else {
					writers[cid] = w
				}
			}
		}

		tracker.Update(pkt)
		reider.Update(pkt)

		if cfg.UploadData {
			client.Send(pkt)
		}
		if w := writers[cid]; w != nil {
			w.Save(store.Record{FrameID: pkt.FrameID, Meta: pkt.Meta})
		}
	})

	for cid, w := range writers {
		if err := w.Close(); err != nil {
			monitoring.Logf("[Tracker] flush %s: %v", cid, err)
		}
	}
	log.Println("tracker finished")
}
