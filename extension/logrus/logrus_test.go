package logrus_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/streamvault/streamvault"
	streamvaultlogrus "github.com/streamvault/streamvault/extension/logrus"
)

func TestWrapper_ImplementsLoggerAndCarriesFields(t *testing.T) {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	var buf bytes.Buffer
	base.SetOutput(&buf)

	logger := streamvaultlogrus.Wrap(base)

	var l streamvault.Logger = logger
	l = l.WithField("stream", "account-1").WithError(errors.New("boom"))
	l.Warn("append failed")

	assert.Contains(t, buf.String(), "append failed")
	assert.Contains(t, buf.String(), "account-1")
}
