// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

var (
	publishBroker     string
	publishTopic      string
	publishInterval   int
	publishQoS        int
	publishClientID   string
	publishBrokerUser string
	publishThrottle   int
	publishMaxRPM     uint32
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish telemetry samples to an MQTT broker",
	Long: `Publish CBOR-encoded telemetry samples to an MQTT broker.

With --port or --url the samples come from the KISS serial telemetry
stream; otherwise a simulated ESC runs at --throttle and the decoded
bidirectional DSHOT telemetry is published.

The client identifier defaults to "bidshot-" plus the machine ID, so
multiple hosts publishing to one broker stay distinct. For broker
authentication pass --broker-user; the password is read from the
BIDSHOT_PASSWORD environment variable, or prompted interactively.

Exit codes:
  0 - Clean shutdown
  2 - Source or broker error`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishBroker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	publishCmd.Flags().StringVar(&publishTopic, "topic", "bidshot/telemetry", "MQTT topic")
	publishCmd.Flags().IntVar(&publishInterval, "interval", 500, "Publish interval in milliseconds")
	publishCmd.Flags().IntVar(&publishQoS, "qos", 0, "MQTT QoS level (0-2)")
	publishCmd.Flags().StringVar(&publishClientID, "client-id", "", "MQTT client ID (default derives from the machine ID)")
	publishCmd.Flags().StringVar(&publishBrokerUser, "broker-user", "", "MQTT username")
	publishCmd.Flags().IntVar(&publishThrottle, "throttle", dshot.ThrottleMin+500, "Simulated throttle when no connection is given")
	publishCmd.Flags().Uint32Var(&publishMaxRPM, "max-rpm", 15000, "Simulated motor RPM at full throttle")
}

// mqttSample is the wire payload, CBOR-encoded with integer keys.
type mqttSample struct {
	TimestampMs  int64   `cbor:"1,keyasint"`
	Source       string  `cbor:"2,keyasint"`
	RPM          uint32  `cbor:"3,keyasint"`
	ERPM         uint32  `cbor:"4,keyasint"`
	PeriodMicros uint16  `cbor:"5,keyasint,omitempty"`
	Valid        bool    `cbor:"6,keyasint"`
	Temperature  uint8   `cbor:"7,keyasint,omitempty"`
	Voltage      float64 `cbor:"8,keyasint,omitempty"`
	Current      float64 `cbor:"9,keyasint,omitempty"`
	Consumption  uint16  `cbor:"10,keyasint,omitempty"`
}

func runPublish(cmd *cobra.Command, args []string) error {
	if publishThrottle < 0 || publishThrottle > dshot.ThrottleMax {
		return fmt.Errorf("throttle out of range: %d", publishThrottle)
	}

	src, srcInfo, err := openTelemetrySource(uint16(publishThrottle), publishMaxRPM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Source error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	clientID := publishClientID
	if clientID == "" {
		id, err := machineid.ID()
		if err != nil {
			return fmt.Errorf("failed to derive client ID: %v (use --client-id)", err)
		}
		if len(id) > 12 {
			id = id[:12]
		}
		clientID = "bidshot-" + id
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(publishBroker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(10 * time.Second)

	if publishBrokerUser != "" {
		password, err := GetPassword()
		if err != nil {
			return err
		}
		opts.SetUsername(publishBrokerUser)
		opts.SetPassword(password)
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "Broker error: %v\n", token.Error())
		os.Exit(2)
	}
	defer client.Disconnect(250)

	fmt.Printf("BiDShot - Telemetry Publisher\n")
	fmt.Printf("Source: %s\n", srcInfo)
	fmt.Printf("Broker: %s (client %s)\n", publishBroker, clientID)
	fmt.Printf("Topic: %s, every %dms\n", publishTopic, publishInterval)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(publishInterval) * time.Millisecond)
	defer ticker.Stop()

	published := 0
	stale := 0

	for {
		select {
		case <-sigChan:
			fmt.Printf("\n%d samples published, %d intervals without fresh data\n", published, stale)
			return nil

		case <-ticker.C:
			sample, fresh := src.Sample()
			if !fresh {
				stale++
				continue
			}

			payload, err := cbor.Marshal(mqttSample{
				TimestampMs:  time.Now().UnixMilli(),
				Source:       sample.Source,
				RPM:          sample.RPM,
				ERPM:         sample.ERPM,
				PeriodMicros: sample.PeriodMicros,
				Valid:        sample.Valid,
				Temperature:  sample.Temperature,
				Voltage:      sample.Voltage,
				Current:      sample.Current,
				Consumption:  sample.Consumption,
			})
			if err != nil {
				return fmt.Errorf("failed to encode sample: %v", err)
			}

			token := client.Publish(publishTopic, byte(publishQoS), false, payload)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				fmt.Fprintf(os.Stderr, "Publish error: %v\n", token.Error())
				continue
			}

			published++
			if published%20 == 0 {
				if sample.HasPower {
					fmt.Printf("%d samples published (last: rpm=%d %.2fV %.2fA)\n",
						published, sample.RPM, sample.Voltage, sample.Current)
				} else {
					fmt.Printf("%d samples published (last: rpm=%d)\n", published, sample.RPM)
				}
			}
		}
	}
}
