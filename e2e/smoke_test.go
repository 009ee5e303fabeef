//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"boilertemp/internal/readings/types"
)

func TestSmoke_ServerHealthz(t *testing.T) {
	repoRoot := repoRootPath(t)
	sqlitePath := startSQLite(t)
	bin := buildBinary(t, repoRoot, "./cmd/server")
	addr := pickFreeAddr(t)

	server := startProcess(t, bin,
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"SQLITE_PATH="+sqlitePath,
	)

	client := &http.Client{Timeout: 2 * time.Second}
	waitForOK(t, client, "http://"+addr+"/healthz", 10*time.Second)

	resp, err := client.Get("http://" + addr + "/api/v1/readings/latest")
	if err != nil {
		t.Fatalf("GET latest: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("latest on empty store: status=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}

	stopProcess(t, server)
}

func TestSmoke_CollectorFeedsLiveClients(t *testing.T) {
	repoRoot := repoRootPath(t)
	sqlitePath := startSQLite(t)
	mqttHost, mqttPort := startMosquitto(t)

	boards := []string{statusXML("21.5°C", "22.0°C"), statusXML("45.0°C", "46.2°C"), statusXML("19.8°C", "60.1°C")}
	var boardURLs []string
	for _, body := range boards {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/xml")
			_, _ = io.WriteString(w, body)
		}))
		t.Cleanup(srv.Close)
		boardURLs = append(boardURLs, srv.URL+"/status.xml")
	}

	common := []string{
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"TIMEZONE=Europe/Athens",
		"SQLITE_PATH=" + sqlitePath,
		"MQTT_BROKER=" + mqttHost,
		"MQTT_PORT=" + mqttPort,
		"MQTT_TOPIC=boilertemp/e2e",
	}

	addr := pickFreeAddr(t)
	server := startProcess(t, buildBinary(t, repoRoot, "./cmd/server"), append(common, "HTTP_ADDR="+addr)...)
	client := &http.Client{Timeout: 2 * time.Second}
	waitForOK(t, client, "http://"+addr+"/healthz", 10*time.Second)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	collector := startProcess(t, buildBinary(t, repoRoot, "./cmd/collector"), append(common,
		"BOARD_URLS="+strings.Join(boardURLs, ","),
		"COLLECT_INTERVAL=1h",
		"HTTP_RETRY_MAX=0",
	)...)

	_ = conn.SetReadDeadline(time.Now().Add(20 * time.Second))
	var live types.Reading
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("read live reading: %v", err)
	}
	want := types.Temperatures{21.5, 22, 45, 46.2, 60.1, 19.8}
	if live.Temperatures != want {
		t.Errorf("live temperatures = %v, want %v", live.Temperatures, want)
	}

	resp, err := client.Get("http://" + addr + "/api/v1/readings/latest")
	if err != nil {
		t.Fatalf("GET latest: %v", err)
	}
	defer resp.Body.Close()
	var stored types.Reading
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if stored.Temperatures != want || !stored.Timestamp.Equal(live.Timestamp) {
		t.Errorf("stored = %+v, live = %+v", stored, live)
	}

	stopProcess(t, collector)
	stopProcess(t, server)
}
