// Command pdc-client connects to a PMU/PDC, negotiates its configuration,
// and streams Data frames, printing a periodic summary - the CLI
// counterpart to the library's Session/Transport API.
package main

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridmetrics/synchrophasor"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	setupLogging(cfg.PDC.LogLevel)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.PDC.MetricsPort)
		log.WithField("addr", addr).Info("serving metrics")
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	log.WithFields(log.Fields{"address": cfg.PDC.Address, "proto": cfg.PDC.Proto}).Info("connecting")

	var transport synchrophasor.Transport
	switch cfg.PDC.Proto {
	case "udp":
		transport, err = synchrophasor.DialDatagram(cfg.PDC.Address)
	default:
		transport, err = synchrophasor.DialStream(cfg.PDC.Address)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	transport.SetReadTimeout(cfg.PDC.ReadTimeout)

	session := synchrophasor.NewSession(cfg.PDC.IDCode)
	session.SetMetrics(prometheusMetrics{})
	defer session.Disconnect()

	if err := session.Connect(transport); err != nil {
		log.WithError(err).Fatal("negotiation failed")
	}

	log.Info("requesting header frame")
	if header, err := session.Header(); err != nil {
		log.WithError(err).Warn("failed to read header frame")
	} else {
		log.WithField("data", header.Data).Info("header received")
	}

	negotiated := session.Config()
	log.WithFields(log.Fields{
		"num_pmu":   negotiated.NumPMU(),
		"data_rate": negotiated.DataRate,
		"time_base": negotiated.TimeBase,
	}).Info("configuration negotiated")

	for i, st := range session.Stations() {
		log.WithFields(log.Fields{
			"index":        i,
			"name":         st.Name,
			"phasors":      st.PhasorNames,
			"analogs":      st.AnalogNames,
			"digitals":     st.DigitalNames,
			"nominal_freq": st.NominalFreq,
		}).Info("station")
	}

	if !session.IsTimeReliable() {
		log.Warn("device reports unreliable time quality")
	}

	if err := session.Start(); err != nil {
		log.WithError(err).Fatal("failed to start streaming")
	}
	log.Info("streaming started")

	frameCount := 0
	start := time.Now()
	for {
		frame, err := session.NextFrame()
		if err != nil {
			log.WithError(err).Error("failed to read frame")
			if session.State() == synchrophasor.StateFailed {
				return
			}
			continue
		}
		frameCount++

		if frameCount%10 != 0 {
			continue
		}
		elapsed := time.Since(start).Seconds()
		rate := float64(frameCount) / elapsed

		for i, pmu := range frame.PMUs {
			entry := log.WithFields(log.Fields{
				"frame":      frameCount,
				"fps":        rate,
				"pmu":        i,
				"freq":       pmu.Freq,
				"dfreq":      pmu.DFreq,
				"data_error": pmu.Stat.DataError.String(),
			})
			if len(pmu.Phasors) > 0 {
				entry = entry.WithFields(log.Fields{
					"phasor0_mag": pmu.Phasors[0].Mag,
					"phasor0_deg": pmu.Phasors[0].Deg(),
				})
			}
			entry.Info("frame summary")
		}
	}
}
