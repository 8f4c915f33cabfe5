package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/config"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/server"
)

func main() {
	cfg := config.Load()
	s := server.NewServer(cfg)
	addr := ":" + cfg.Port
	fmt.Printf("chat gateway listening on %s (upstream %s)\n", addr, cfg.UpstreamURL)
	log.Fatal(http.ListenAndServe(addr, s.Router()))
}
