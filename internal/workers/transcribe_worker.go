package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/providers/stt"
	"github.com/hireloop/hireloop/internal/services"
)

// TranscribeWorkerPool drains the answers:audio stream. Each entry is a
// dictated audio chunk for the session's current question; the transcript
// is appended to the answer draft and echoed on the session's events
// channel so the client can render it live.
type TranscribeWorkerPool struct {
	Redis      *redis.Client
	Drafts     services.DraftStore
	STT        stt.Provider
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *TranscribeWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Drafts == nil || p.STT == nil {
		return errors.New("TranscribeWorkerPool missing dependency: Redis/Drafts/STT must be set")
	}
	if p.Stream == "" {
		p.Stream = "answers:audio"
	}
	if p.Group == "" {
		p.Group = "transcribe-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *TranscribeWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TranscribeWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	indexStr := getStr("question_index")
	if sessionID == "" || indexStr == "" {
		return
	}
	questionIndex, err := strconv.Atoi(indexStr)
	if err != nil || questionIndex < 0 {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":       msg.ID,
		"session_id":     sessionID,
		"question_index": questionIndex,
	})
	eventsCh := "session:" + sessionID + ":events"

	raw := getStr("audio_base64")
	if raw == "" {
		return
	}
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	audio, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		log.WithError(err).Warn("base64 decode failed")
		p.publishEvent(ctx, eventsCh, map[string]any{
			"type":           "transcript_failed",
			"question_index": questionIndex,
			"message":        "invalid audio payload",
		})
		return
	}

	text, conf, err := p.STT.Transcribe(ctx, audio)
	if err != nil {
		log.WithError(err).Error("transcription failed")
		p.publishEvent(ctx, eventsCh, map[string]any{
			"type":           "transcript_failed",
			"question_index": questionIndex,
			"message":        "transcription failed",
		})
		return
	}
	if text == "" {
		return
	}

	if err := p.Drafts.Append(ctx, sessionID, questionIndex, text+" "); err != nil {
		log.WithError(err).Error("draft append failed")
		return
	}

	p.publishEvent(ctx, eventsCh, map[string]any{
		"type":           "transcript",
		"question_index": questionIndex,
		"text":           text,
		"confidence":     conf,
	})
}

func (p *TranscribeWorkerPool) publishEvent(ctx context.Context, channel string, payload map[string]any) {
	b, _ := json.Marshal(payload)
	_ = p.Redis.Publish(ctx, channel, b).Err()
}
