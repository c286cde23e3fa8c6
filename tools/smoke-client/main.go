// Command smoke-client sends synthetic OTLP metrics to a running sysdbd's
// OTLP backend, exercising backend.OTLPBackend end to end without an
// OpenTelemetry SDK dependency. Adapted from the teacher's
// tools/simple-test-client, which sent metrics, logs and traces to three
// separate telemetry endpoints; only the metrics path survives here,
// since logs and traces have no object-graph analogue, and every point
// now carries the host.name/service.name resource attributes
// backend.OTLPBackend uses to resolve host/service identity.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	endpoint := flag.String("endpoint", "http://localhost:4318/v1/metrics", "OTLP metrics HTTP endpoint")
	hostName := flag.String("host", "test-server", "host.name resource attribute to send")
	serviceName := flag.String("service", "test-service", "service.name resource attribute to send")
	flag.Parse()

	fmt.Printf("Starting smoke-client, sending synthetic metrics to %s\n", *endpoint)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	stopChan := make(chan struct{})
	go sendMetrics(*endpoint, *hostName, *serviceName, stopChan)

	<-sigChan
	fmt.Println("\nShutting down...")
	close(stopChan)
	time.Sleep(100 * time.Millisecond)
	fmt.Println("Shutdown complete.")
}

func sendMetrics(endpoint, hostName, serviceName string, stopChan <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			cpuValue := rand.Float64() * 100
			memoryValue := 100 + rand.Float64()*900

			payload := map[string]interface{}{
				"resourceMetrics": []map[string]interface{}{
					{
						"resource": map[string]interface{}{
							"attributes": []map[string]interface{}{
								{"key": "host.name", "value": map[string]interface{}{"stringValue": hostName}},
								{"key": "service.name", "value": map[string]interface{}{"stringValue": serviceName}},
							},
						},
						"scopeMetrics": []map[string]interface{}{
							{
								"scope": map[string]interface{}{"name": "sysdb-smoke-client", "version": "1.0.0"},
								"metrics": []map[string]interface{}{
									gaugeMetric("cpu_usage", "CPU usage in percent", "%", cpuValue),
									gaugeMetric("memory_usage", "Memory usage in MB", "MB", memoryValue),
								},
							},
						},
					},
				},
			}

			if err := sendJSON(endpoint, payload); err != nil {
				fmt.Fprintf(os.Stderr, "error sending metrics: %v\n", err)
				continue
			}
			fmt.Printf("Sent metrics for host=%s: CPU=%.2f%%, Memory=%.2fMB\n", hostName, cpuValue, memoryValue)
		}
	}
}

func gaugeMetric(name, description, unit string, value float64) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"unit":        unit,
		"gauge": map[string]interface{}{
			"dataPoints": []map[string]interface{}{
				{
					"timeUnixNano": time.Now().UnixNano(),
					"asDouble":     value,
				},
			},
		},
	}
}

func sendJSON(url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned status %s", resp.Status)
	}
	return nil
}
