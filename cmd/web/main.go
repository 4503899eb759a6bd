// The web worker receives annotated frames, persists completed acts and
// pushes live metadata to browser viewers over a websocket.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/watchgrid/watchgrid/internal/config"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/netio"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/pipeline"
	"github.com/watchgrid/watchgrid/internal/store"
	"github.com/watchgrid/watchgrid/internal/web"
)

const resFolder = "res/web"

const indexPage = `<!DOCTYPE html>
<html>
<head><title>watchgrid</title></head>
<body>
<h3>watchgrid live feed</h3>
<pre id="feed"></pre>
<script>
const feed = document.getElementById("feed");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const u = JSON.parse(ev.data);
  let line = u.cam_id + "#" + u.frame_id + " boxes=" + (u.boxes ? u.boxes.length : 0);
  for (const a of (u.acts || [])) {
    line += "\n  " + a.Label + " " + a.ID + (a.ID2 ? " " + a.ID2 : "");
  }
  feed.textContent = (line + "\n" + feed.textContent).split("\n").slice(0, 200).join("\n");
};
</script>
</body>
</html>
`

func main() {
	closer, err := monitoring.SetupStageLog("web")
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	cfg, err := config.Load("web")
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	server, err := netio.NewServer("web", cfg.LocalAddr, cfg.QueueSize)
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

	hub := web.NewHub()
	go hub.Run(ctx.Done())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexPage))
	})
	mux.HandleFunc("/ws", hub.ServeWS)
	httpServer := &http.Server{Addr: cfg.WebAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("[Web] http server: %v", err)
		}
	}()
	log.Printf("web ui on http://%s", cfg.WebAddr)

	session := uuid.NewString()
	writers := make(map[string]*store.DataWriter)

	pipeline.Consume(ctx, server.Queue(), func(pkt *packet.FramePacket) {
		hub.Broadcast(web.UpdateFromPacket(pkt))

		if err := db.InsertActs(session, pkt.CamID, pkt.Acts); err != nil {
			monitoring.Logf("[Web] act insert: %v", err)
		}

		if cfg.SaveData {
			w, ok := writers[pkt.CamID]
			if !ok {
				var err error
				w, err = store.NewDataWriter(resFolder, pkt.CamID)
				if err != nil {
					monitoring.Logf("[Web] no data writer for %s: %v", pkt.CamID, err)
					return
				}
				writers[pkt.CamID] = w
			}
			w.Save(store.Record{FrameID: pkt.FrameID, Meta: pkt.Meta, Acts: pkt.Acts})
		}
	})

	for cid, w := range writers {
		if err := w.Close(); err != nil {
			monitoring.Logf("[Web] flush %s: %v", cid, err)
		}
	}
	log.Println("web finished")
}
