package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Arisex96/bio-mat-new/pkg/errors"
)

func TestEventPublisher_CatalogImported(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewEventPublisher(rec, "matsel-apiserver")

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, pub.CatalogImported(context.Background(), CatalogImportedPayload{Version: "v-1", Records: 20, ImportedAt: at}))
	require.Len(t, rec.msgs, 1)

	msg := rec.msgs[0]
	assert.Equal(t, TopicCatalogImported, msg.Topic)
	assert.Equal(t, []byte(TopicCatalogImported), msg.Key)
	assert.Equal(t, "matsel-apiserver", msg.Headers[headerSource])
	assert.NotContains(t, msg.Headers, headerTraceID)

	env, err := MessageToEventEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, TopicCatalogImported, env.EventType)
	assert.Equal(t, EventSchemaVersion, env.SchemaVersion)
	assert.NotEmpty(t, env.EventID)

	var payload CatalogImportedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "v-1", payload.Version)
	assert.Equal(t, 20, payload.Records)
	assert.True(t, at.Equal(payload.ImportedAt))
}

func TestEnvelope_TraceIDHeader(t *testing.T) {
	env, err := NewEventEnvelope(TopicRecommendationComputed, "api", RecommendationComputedPayload{QueryID: "q"})
	require.NoError(t, err)
	env.TraceID = "trace-7"
	msg, err := env.ToMessage(TopicRecommendationComputed)
	require.NoError(t, err)
	assert.Equal(t, "trace-7", msg.Headers[headerTraceID])
}

func TestEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	assert.Error(t, (&EventEnvelope{}).DecodePayload(&struct{}{}))
	assert.Error(t, (&EventEnvelope{Payload: []byte("null")}).DecodePayload(&struct{}{}))

	_, err = NewEventEnvelope("x", "api", func() {})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}
