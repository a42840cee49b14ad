package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordArticle(t *testing.T) {
	before := testutil.ToFloat64(ArticlesTotal.WithLabelValues("rss", "logged"))
	RecordArticle("rss", "logged")
	RecordArticle("rss", "logged")
	assert.Equal(t, before+2, testutil.ToFloat64(ArticlesTotal.WithLabelValues("rss", "logged")))
}

func TestRecordClassifierFailure(t *testing.T) {
	before := testutil.ToFloat64(ClassifierFailures)
	RecordClassifierFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(ClassifierFailures))
}

func TestRecordDigestAndFetchError(t *testing.T) {
	RecordDigest("sent")
	RecordFetchError("newsapi")
	assert.GreaterOrEqual(t, testutil.ToFloat64(DigestsTotal.WithLabelValues("sent")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(FetchErrors.WithLabelValues("newsapi")), 1.0)
}
