package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func main() {
	url := flag.String("url", "ws://localhost:8888/api/v1/challenges/active/ws", "active challenge stream")
	initData := flag.String("init-data", "", "telegram init data of the user")
	flag.Parse()

	header := http.Header{}
	header.Add("Authorization", "Telegram "+*initData)

	conn, _, err := websocket.DefaultDialer.Dial(*url, header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	messageQueue := make(chan Message)

	go func() {
		defer close(messageQueue)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			var m Message
			if err := json.Unmarshal(p, &m); err != nil {
				log.Println("json unmarshal error:", err)
				continue
			}
			messageQueue <- m
		}
	}()

	for message := range messageQueue {
		c, _ := message.Payload["challenge"].(map[string]any)
		if c == nil {
			log.Println("no active challenge")
			continue
		}
		log.Printf("Active challenge: %v (%v), day %v\n", c["title"], c["id"], c["currentDay"])
	}
}
