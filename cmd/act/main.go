// The act worker batches tracked frames into tube windows, derives spatial
// and neural acts, composes activities and uploads the annotated frames.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/actor"
	"github.com/watchgrid/watchgrid/internal/config"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/netio"
	"github.com/watchgrid/watchgrid/internal/nn"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/pipeline"
	"github.com/watchgrid/watchgrid/internal/store"
	"github.com/watchgrid/watchgrid/internal/tube"
)

const resFolder = "res/act"

func main() {
	closer, err := monitoring.SetupStageLog("act")
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load("act")
	if err != nil {
		log.Fatal(err)
	}

	graphs, err := act.LoadGraphs(cfg.ActDefPath)
	if err != nil {
		log.Fatal(err)
	}

	var classifier nn.ActionClassifier
	if cfg.ActModelPath != "" {
		dnn, err := nn.NewDNNClassifier(cfg.ActModelPath, cfg.ActClassPath)
		if err != nil {
			log.Fatal(err)
		}
		defer dnn.Close()
		classifier = dnn
	} else {
		monitoring.Logf("[NNAct] no model configured, neural acts disabled")
	}

	server, err := netio.NewServer("act", cfg.LocalAddr, cfg.QueueSize)
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

	client := netio.NewClient("act", cfg.ServerAddr, cfg.QueueSize)
	if cfg.UploadData {
		go client.Run(ctx)
	}

	// Stage queues, each hop bounded and lossy.
	tubeQ := pipeline.NewQueue[*tube.ServerPkt]("tube", cfg.QueueSize)
	spatialQ := pipeline.NewQueue[*tube.ServerPkt]("spatial", cfg.QueueSize)
	nnQ := pipeline.NewQueue[*tube.ServerPkt]("nnact", cfg.QueueSize)
	outQ := pipeline.NewQueue[*tube.ServerPkt]("compact", cfg.QueueSize)
	reloadQ := pipeline.NewQueue[[]*act.Graph]("actdef", 4)

	go watchDefinitions(ctx, cfg.ActDefPath, reloadQ)

	var wg sync.WaitGroup
	runStage := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	batcher := tube.NewBatcher(tube.DefaultBatcherParams(cfg.TrackLabels, cfg.AttachLabels))
	runStage(func() {
		pipeline.Consume(ctx, server.Queue(), func(pkt *packet.FramePacket) {
			if sp := batcher.Add(pkt); sp != nil {
				tubeQ.Write(sp)
			}
		})
	})

	spatial := actor.NewSpatialActor()
	runStage(func() {
		pipeline.Consume(ctx, tubeQ, func(sp *tube.ServerPkt) {
			spatial.Process(sp)
			spatialQ.Write(sp)
		})
	})

	if classifier != nil {
		neural := actor.NewNeuralActor(classifier, cfg.NNBatch, cfg.TubeSize)
		runStage(func() {
			pipeline.Consume(ctx, spatialQ, func(sp *tube.ServerPkt) {
				neural.Process(sp)
				nnQ.Write(sp)
			})
		})
	} else {
		runStage(func() {
			pipeline.Consume(ctx, spatialQ, func(sp *tube.ServerPkt) {
				nnQ.Write(sp)
			})
		})
	}

	composer := actor.NewComposer(graphs)
	runStage(func() {
		pipeline.Consume(ctx, nnQ, func(sp *tube.ServerPkt) {
			if fresh, ok := reloadQ.Read(); ok {
				composer.Reload(fresh)
			}
			composer.Process(sp)
			outQ.Write(sp)
		})
	})

	writers := make(map[string]*store.DataWriter)
	log.Println("act server starts")
	pipeline.Consume(ctx, outQ, func(sp *tube.ServerPkt) {
		monitoring.Logf("[Act] Cam-%s Frame-%d Acts-%v", sp.CamID, sp.FirstFrameID(), sp.ActionLogs())

		cid := sp.CamID
		if cfg.SaveData && writers[cid] == nil {
			w, err := store.NewDataWriter(resFolder, cid)
			if err != nil {
				monitoring.Logf("[Act] no data writer for %s: %v", cid, err)
			} else {
				writers[cid] = w
			}
		}

		for _, p := range sp.ToFramePackets() {
			if cfg.UploadData {
				client.Send(p)
			}
			if w := writers[cid]; w != nil {
				w.Save(store.Record{FrameID: p.FrameID, Meta: p.Meta, Acts: p.Acts})
			}
		}
	})

	wg.Wait()
	for cid, w := range writers {
		if err := w.Close(); err != nil {
			monitoring.Logf("[Act] flush %s: %v", cid, err)
		}
	}
	log.Println("act server finished")
}

// watchDefinitions reloads the activity definition file on change. Parse
// failures keep the running definitions.
func watchDefinitions(ctx context.Context, path string, out *pipeline.Queue[[]*act.Graph]) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		monitoring.Logf("[CompAct] definition watch unavailable: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		monitoring.Logf("[CompAct] cannot watch %s: %v", path, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			graphs, err := act.LoadGraphs(path)
			if err != nil {
				monitoring.Logf("[CompAct] reload skipped, bad definitions: %v", err)
				continue
			}
			out.Write(graphs)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			monitoring.Logf("[CompAct] watch error: %v", err)
		}
	}
}
