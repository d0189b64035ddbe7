package kafka

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const (
	dialTimeout = 10 * time.Second
	dayMillis   = int64(24 * time.Hour / time.Millisecond)
)

// AdminConn is the part of *kafka.Conn used for topic administration.
type AdminConn interface {
	SetDeadline(t time.Time) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
	Close() error
}

// TopicManager creates the topics the services publish to.
type TopicManager struct {
	conn   AdminConn
	logger logging.Logger
}

// NewTopicManager dials the first broker. Topic creation is forwarded to the
// controller by the broker.
func NewTopicManager(brokers []string, security SecurityConfig, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeConfigError, "kafka brokers are required")
	}
	dialer, err := security.dialer(dialTimeout)
	if err != nil {
		return nil, err
	}
	conn, err := dialer.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "cannot reach kafka broker").WithDetail(brokers[0])
	}
	return NewTopicManagerWithConn(conn, logger), nil
}

func NewTopicManagerWithConn(conn AdminConn, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

func (t TopicConfig) validate() error {
	switch {
	case t.Name == "":
		return errors.New(errors.ErrCodeValidation, "topic name is required")
	case t.NumPartitions < 1:
		return errors.New(errors.ErrCodeValidation, "topic needs at least one partition").WithDetail(t.Name)
	case t.ReplicationFactor < 1:
		return errors.New(errors.ErrCodeValidation, "topic replication factor must be positive").WithDetail(t.Name)
	}
	return nil
}

func (t TopicConfig) toKafka() kafka.TopicConfig {
	kc := kafka.TopicConfig{Topic: t.Name, NumPartitions: t.NumPartitions, ReplicationFactor: t.ReplicationFactor}
	add := func(name, value string) {
		kc.ConfigEntries = append(kc.ConfigEntries, kafka.ConfigEntry{ConfigName: name, ConfigValue: value})
	}
	if t.RetentionMs > 0 {
		add("retention.ms", strconv.FormatInt(t.RetentionMs, 10))
	}
	if t.CleanupPolicy != "" {
		add("cleanup.policy", t.CleanupPolicy)
	}
	for k, v := range t.Configs {
		add(k, v)
	}
	return kc
}

// EnsureTopics creates whichever of topics do not exist yet and returns
// their names. ctx bounds the whole exchange with the broker.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) ([]string, error) {
	for _, t := range topics {
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := m.conn.SetDeadline(dl); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "cannot set kafka deadline")
		}
	}

	existing, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "cannot list kafka topics")
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Topic] = true
	}

	var missing []kafka.TopicConfig
	var names []string
	for _, t := range topics {
		if !have[t.Name] {
			missing = append(missing, t.toKafka())
			names = append(names, t.Name)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := m.conn.CreateTopics(missing...); err != nil && !stderrors.Is(err, kafka.TopicAlreadyExists) {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "cannot create kafka topics").WithDetailf("%v", names)
	}
	m.logger.Info("kafka topics created", logging.Strings("topics", names))
	return names, nil
}

func (m *TopicManager) Close() error { return m.conn.Close() }

// DefaultTopics are the event topics plus the shared dead-letter topic.
// Recommendation events get more partitions since every query emits one.
func DefaultTopics(replication int) []TopicConfig {
	if replication < 1 {
		replication = 1
	}
	return []TopicConfig{
		{Name: TopicCatalogImported, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * dayMillis},
		{Name: TopicRecommendationComputed, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * dayMillis},
		{Name: TopicDeadLetterDefault, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * dayMillis},
	}
}
