package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggingTestSuite struct {
	suite.Suite
	buf *bytes.Buffer
}

func (s *LoggingTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
}

func TestLoggingTestSuite(t *testing.T) {
	suite.Run(t, new(LoggingTestSuite))
}

func (s *LoggingTestSuite) TestContextAttributesAreLogged() {
	logger := Setup(&Config{Level: "debug", Format: "json", Output: s.buf})

	ctx := AppendCtx(context.Background(), slog.String("gathering_id", "g-1"))
	ctx = AppendCtx(ctx, slog.String("job_id", "open_gathering:g-1"))
	logger.InfoContext(ctx, "opening gathering")

	var line map[string]any
	s.Require().NoError(json.Unmarshal(s.buf.Bytes(), &line))
	s.Equal("opening gathering", line["msg"])
	s.Equal("g-1", line["gathering_id"])
	s.Equal("open_gathering:g-1", line["job_id"])
}

func (s *LoggingTestSuite) TestLevelFiltering() {
	logger := Setup(&Config{Level: "warn", Format: "text", Output: s.buf})

	logger.Info("hidden")
	s.Empty(s.buf.String())

	logger.Warn("shown")
	s.Contains(s.buf.String(), "shown")
}

func (s *LoggingTestSuite) TestAppendCtxDoesNotMutateParent() {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	_ = AppendCtx(parent, slog.String("b", "2"))

	attrs := parent.Value(ctxKey{}).([]slog.Attr)
	s.Len(attrs, 1)
}
