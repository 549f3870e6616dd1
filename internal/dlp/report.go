package dlp

import (
	"fmt"
	"io"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// WriteKAnonymityReport prints the final state of a k-anonymity job: the
// histogram buckets when done, the error details when failed, and advice
// when the job did not finish in time.
func WriteKAnonymityReport(w io.Writer, result *WaitResult) error {
	job := result.Job
	p := &printer{w: w}

	if result.Outcome == OutcomeTimedOut {
		p.printf("Timed out after %s waiting for a completion notification\n", result.Elapsed)
	}
	p.printf("Job %s status: %s\n", job.GetName(), job.GetState())

	switch job.GetState() {
	case dlppb.DlpJob_DONE:
		for i, bucket := range result.Buckets() {
			p.printf("Bucket %d:\n", i)
			p.printf("  Bucket size range: [%d, %d]\n",
				bucket.GetEquivalenceClassSizeLowerBound(),
				bucket.GetEquivalenceClassSizeUpperBound(),
			)
			for _, class := range bucket.GetBucketValues() {
				p.printf("  Quasi-ID values:\n")
				for _, v := range class.GetQuasiIdsValues() {
					p.printf("    %s\n", p.json(v))
				}
				p.printf("  Class size: %d\n", class.GetEquivalenceClassSize())
			}
		}
	case dlppb.DlpJob_FAILED:
		p.printf("Job %s had errors:\n", job.GetName())
		for _, e := range result.Errors() {
			p.printf("  %s\n", p.json(e.GetDetails()))
		}
	case dlppb.DlpJob_PENDING:
		p.printf("Job has not completed. Consider a longer timeout or an asynchronous execution model\n")
	default:
		p.printf("Unexpected job state. Most likely, the job is either running or has not yet started.\n")
	}
	return p.err
}

// printer keeps the first write error so report code stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) json(m proto.Message) string {
	b, err := protojson.Marshal(m)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
