// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/monitoring"
	"github.com/relabs-tech/body_tracker/internal/recorder"
	"github.com/relabs-tech/body_tracker/internal/skeleton"
	"github.com/relabs-tech/body_tracker/internal/tracking"
)

// statusEvery is how many solves pass between two status publications.
const statusEvery = 50

// PoseServer owns the trackers and the skeleton. None of its methods are
// safe for concurrent use; RunPoseServer calls them from one goroutine.
type PoseServer struct {
	cfg      *config.Config
	manager  *tracking.Manager
	skel     *skeleton.Skeleton
	root     skeleton.GlobalPosition
	stale    time.Duration
	publish  publishFunc
	rec      *recorder.Recorder
	session  string
	last     skeleton.Frame
	hasFrame bool
	solves   uint64
}

// NewPoseServer builds the trackers and skeleton described by cfg. publish
// receives every frame and status message.
func NewPoseServer(cfg *config.Config, publish publishFunc) (*PoseServer, error) {
	m, err := tracking.NewManager(cfg.Trackers, cfg.SampleTime(), cfg.FusionParams(), cfg.UseMagnetometer)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		monitoring.Logf("pose: no TRACKER_<sensor> entries configured, skeleton stays in calibration pose")
	}
	return &PoseServer{
		cfg:     cfg,
		manager: m,
		skel:    skeleton.New(cfg.BoneLengths),
		root:    skeleton.GlobalPosition(cfg.RootPosition),
		stale:   time.Duration(cfg.StaleAfter) * time.Millisecond,
		publish: publish,
	}, nil
}

// AttachRecorder records every solved frame into a new session.
func (p *PoseServer) AttachRecorder(r *recorder.Recorder, now time.Time) error {
	id, err := r.StartSession(now, p.sessionNotes())
	if err != nil {
		return err
	}
	p.rec, p.session = r, id
	monitoring.Logf("pose: recording session %s", id)
	return nil
}

func (p *PoseServer) sessionNotes() string {
	var parts []string
	for _, st := range p.manager.Statuses() {
		parts = append(parts, st.Sensor+"="+st.Bone.String())
	}
	return strings.Join(parts, " ")
}

// HandleSample feeds one sample to its tracker.
func (p *PoseServer) HandleSample(s imu.Sample) {
	if err := p.manager.Handle(s); err != nil {
		monitoring.Logf("pose: dropping sample: %v", err)
	}
}

// HandleCommand executes a command received on the command topic.
func (p *PoseServer) HandleCommand(c Command, now time.Time) {
	switch c.Action {
	case ActionCalibrate:
		n := p.manager.Calibrate()
		monitoring.Logf("pose: calibrated %d of %d trackers", n, p.manager.Len())
	case ActionNewSession:
		if p.rec == nil {
			monitoring.Logf("pose: new_session ignored, recording disabled")
			return
		}
		if err := p.rec.EndSession(p.session, now); err != nil {
			monitoring.Logf("pose: end session: %v", err)
		}
		if err := p.AttachRecorder(p.rec, now); err != nil {
			monitoring.Logf("pose: start session: %v", err)
			p.rec = nil
		}
	default:
		monitoring.Logf("pose: unknown command %q", c.Action)
	}
}

// Tick writes tracker rotations into the skeleton, solves it and publishes
// the frame. When the skeleton cannot be solved the previous frame is kept
// and false is returned.
func (p *PoseServer) Tick(now time.Time) (skeleton.Frame, bool) {
	p.manager.ApplyTo(p.skel, now, p.stale)
	p.skel.RootNode().SetInputPosition(p.root)

	if err := p.skel.Solve(); err != nil {
		if errors.Is(err, skeleton.ErrNoRootNode) {
			return p.last, false
		}
		monitoring.Logf("pose: solve: %v", err)
		return p.last, false
	}

	f := p.skel.Frame()
	f.Time = now
	p.last, p.hasFrame = f, true
	p.solves++

	if err := p.publishJSON(p.cfg.TopicFrame, false, f); err != nil {
		monitoring.Logf("pose: publish frame: %v", err)
	}
	if p.solves%statusEvery == 1 {
		if err := p.publishJSON(p.cfg.TopicStatus, true, p.manager.Statuses()); err != nil {
			monitoring.Logf("pose: publish status: %v", err)
		}
	}
	if p.rec != nil {
		if err := p.rec.RecordFrame(p.session, f); err != nil {
			monitoring.Logf("pose: record frame: %v", err)
		}
	}
	return f, true
}

// LastFrame returns the most recent solved frame.
func (p *PoseServer) LastFrame() (skeleton.Frame, bool) {
	return p.last, p.hasFrame
}

// Close ends the recording session, if any.
func (p *PoseServer) Close(now time.Time) error {
	if p.rec == nil {
		return nil
	}
	return p.rec.EndSession(p.session, now)
}

func (p *PoseServer) publishJSON(topic string, retained bool, v any) error {
	if p.publish == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.publish(topic, retained, payload)
}

// RunPoseServer subscribes to all sensor samples, keeps the skeleton solved
// at SOLVE_INTERVAL and publishes frames and tracker status.
func RunPoseServer() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDPose)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	srv, err := NewPoseServer(cfg, mqttPublisher(client))
	if err != nil {
		return err
	}

	if cfg.SessionDBPath != "" {
		rec, err := recorder.Open(cfg.SessionDBPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		if err := srv.AttachRecorder(rec, time.Now()); err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(time.Now()); err != nil {
				log.Printf("pose: %v", err)
			}
		}()
	}

	// MQTT handlers run on paho's goroutines and only enqueue.
	samples := make(chan imu.Sample, 256)
	commands := make(chan Command, 8)

	err = subscribe(client, cfg.TopicSamples+"/+", func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("pose: sample unmarshal error on %s: %v", msg.Topic(), err)
			return
		}
		if !offer(samples, s) {
			log.Printf("pose: sample queue full, dropping sample from %s", s.Sensor)
		}
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicCommand, func(_ mqtt.Client, msg mqtt.Message) {
		var c Command
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("pose: command unmarshal error: %v", err)
			return
		}
		if !offer(commands, c) {
			log.Printf("pose: command queue full, dropping %q", c.Action)
		}
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.SolveInterval) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.Printf("pose: solving every %d ms for %d trackers", cfg.SolveInterval, srv.manager.Len())
	for {
		select {
		case s := <-samples:
			srv.HandleSample(s)
		case c := <-commands:
			srv.HandleCommand(c, time.Now())
		case now := <-ticker.C:
			if _, ok := srv.Tick(now); !ok {
				log.Printf("pose: solve failed, keeping previous frame")
			}
		case <-sigCh:
			log.Println("pose: shutting down")
			return nil
		}
	}
}

// offer queues v without blocking and reports whether it was accepted.
func offer[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
