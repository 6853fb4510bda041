// Package proxy implements the infrastructure proxy engine of spec.md
// §4.F: a per-printer IPP client loop against an upstream
// infrastructure printer, fetching jobs on behalf of a physical device.
package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phin1x/go-ipp"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// connectTimeout bounds the upstream HTTP round trip (spec.md §4.F
// step 2: "connect, 30s timeout, blocking").
const connectTimeout = 30 * time.Second

// Operation codes the teacher's go-ipp build doesn't define: the IPP
// INFRA extension operations a proxy engine issues against an
// infrastructure printer (spec.md §4.F, §6).
const (
	opFetchDocument           int16 = 0x0042
	opFetchJob                int16 = 0x0043
	opUpdateActiveJobs        int16 = 0x0045
	opUpdateDocumentStatus    int16 = 0x0047
	opUpdateJobStatus         int16 = 0x0048
	opUpdateOutputDeviceAttrs int16 = 0x0049
	opAcknowledgeJob          int16 = 0x0041
	opAcknowledgeDocument     int16 = 0x003f
)

// client issues IPP operations against the infrastructure printer
// identified by printerURI, authenticating as proxyUUID. Grounded on
// the teacher's CUPSProxy: a single http.Client posting encoded ipp
// requests and decoding the IPP response the same way.
type client struct {
	printerURI string
	proxyUUID  string
	bearer     string
	httpClient *http.Client
}

func newClient(printerURI, proxyUUID, bearer string) *client {
	return &client{
		printerURI: printerURI,
		proxyUUID:  proxyUUID,
		bearer:     bearer,
		httpClient: &http.Client{Timeout: connectTimeout},
	}
}

func (c *client) newRequest(op int16) *ipp.Request {
	req := ipp.NewRequest(op, 1)
	req.OperationAttributes["printer-uri"] = c.printerURI
	req.OperationAttributes["requesting-user-name"] = c.proxyUUID
	return req
}

func (c *client) post(payload []byte) (*ipp.Response, error) {
	httpReq, err := http.NewRequest(http.MethodPost, c.printerURI, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ippcore.ErrRemoteIPP, err)
	}
	httpReq.Header.Set("Content-Type", "application/ipp")
	if c.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: posting to %s: %v", ippcore.ErrTransientIO, c.printerURI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ippcore.ErrTransientIO, err)
	}

	ippResp, err := ipp.NewResponseDecoder(bytes.NewReader(body)).Decode(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding IPP response: %v", ippcore.ErrRemoteIPP, err)
	}
	if ippResp.StatusCode != ipp.StatusOk {
		return ippResp, fmt.Errorf("%w: status %d", ippcore.ErrRemoteIPP, ippResp.StatusCode)
	}
	return ippResp, nil
}

func (c *client) do(req *ipp.Request) (*ipp.Response, error) {
	payload, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ippcore.ErrRemoteIPP, err)
	}
	return c.post(payload)
}

// attrString extracts the first string value for key from an IPP
// attribute group, the shape the decoder hands back (spec.md §4.F;
// grounded on cups_proxy.go's job-id extraction idiom).
func attrString(group map[string][]ipp.Attribute, key string) (string, bool) {
	attr, ok := group[key]
	if !ok || len(attr) == 0 {
		return "", false
	}
	s, ok := attr[0].Value.(string)
	return s, ok
}

func attrInt(group map[string][]ipp.Attribute, key string) (int, bool) {
	attr, ok := group[key]
	if !ok || len(attr) == 0 {
		return 0, false
	}
	n, ok := attr[0].Value.(int)
	return n, ok
}

// attrIntList collects every integer value stored for key, one per
// ipp.Attribute entry — the shape a multi-valued response attribute
// takes through this decoder (spec.md §4.F step 3's (job-ids,
// output-device-job-states) pair, echoed back by the infrastructure
// printer).
func attrIntList(group map[string][]ipp.Attribute, key string) []int {
	attrs, ok := group[key]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(attrs))
	for _, a := range attrs {
		if n, ok := a.Value.(int); ok {
			out = append(out, n)
		}
	}
	return out
}

// updateActiveJobs sends Update-Active-Jobs with the local job/output-
// device-state pairs and returns the infrastructure printer's
// authoritative (job-ids, output-device-job-states) echo, which the
// caller reconciles local state against (spec.md §4.F step 3).
func (c *client) updateActiveJobs(jobIDs []int, states []int) ([]int, []int, error) {
	req := c.newRequest(opUpdateActiveJobs)
	ids := make([]interface{}, len(jobIDs))
	for i, id := range jobIDs {
		ids[i] = id
	}
	st := make([]interface{}, len(states))
	for i, s := range states {
		st[i] = s
	}
	req.OperationAttributes["job-ids"] = ids
	req.OperationAttributes["output-device-job-states"] = st

	resp, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}
	remoteIDs := attrIntList(resp.OperationAttributes, "job-ids")
	remoteStates := attrIntList(resp.OperationAttributes, "output-device-job-states")
	return remoteIDs, remoteStates, nil
}

// updateOutputDeviceAttributes reports driver capabilities upstream
// (spec.md §4.F step 3).
func (c *client) updateOutputDeviceAttributes(attrs map[string]interface{}) (*ipp.Response, error) {
	req := c.newRequest(opUpdateOutputDeviceAttrs)
	for k, v := range attrs {
		req.OperationAttributes[k] = v
	}
	return c.do(req)
}

// createPrinterSubscriptions requests job-state-changed/job-fetchable
// notifications with a zero lease, which the infrastructure printer
// interprets as "as long as this proxy is connected" (spec.md §4.F
// step 4). The subscription id comes back in the operation-attributes
// group, the only attribute-group shape this client's transport layer
// reliably exposes for non-job, non-printer responses.
func (c *client) createPrinterSubscriptions() (int, error) {
	req := c.newRequest(ipp.OperationCreatePrinterSubscription)
	req.OperationAttributes["notify-events"] = []interface{}{"job-state-changed", "job-fetchable"}
	req.OperationAttributes["notify-lease-duration"] = 0

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	if id, ok := attrInt(resp.OperationAttributes, "notify-subscription-id"); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: Create-Printer-Subscriptions response missing subscription id", ippcore.ErrRemoteIPP)
}

// cancelSubscription tears down the proxy's subscription on shutdown
// (spec.md §4.F step 7).
func (c *client) cancelSubscription(subID int) error {
	req := c.newRequest(ipp.OperationCancelSubscription)
	req.OperationAttributes["notify-subscription-id"] = subID
	_, err := c.do(req)
	return err
}

// getNotifications polls for events since lastSeq and returns the
// highest sequence number observed (lastSeq unchanged if none), whether
// any delivered event was a job-fetchable notification, and the
// server-suggested poll interval clamped to [5,60]s, defaulting to 5s
// (spec.md §4.F step 6).
func (c *client) getNotifications(subID, lastSeq int) (newSeq int, fetchable bool, interval time.Duration, err error) {
	req := c.newRequest(ipp.OperationGetNotifications)
	req.OperationAttributes["notify-subscription-ids"] = subID
	req.OperationAttributes["notify-sequence-numbers"] = lastSeq

	resp, doErr := c.do(req)
	if doErr != nil {
		return lastSeq, false, 5 * time.Second, doErr
	}

	newSeq = lastSeq
	for _, group := range resp.JobAttributes {
		if seq, ok := attrInt(group, "notify-sequence-number"); ok && seq > newSeq {
			newSeq = seq
		}
		if event, ok := attrString(group, "notify-subscribed-event"); ok && event == "job-fetchable" {
			fetchable = true
		}
	}

	interval = 5 * time.Second
	if secs, ok := attrInt(resp.OperationAttributes, "notify-get-interval"); ok {
		interval = clampInterval(time.Duration(secs) * time.Second)
	}
	return newSeq, fetchable, interval, nil
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d < 5*time.Second:
		return 5 * time.Second
	case d > 60*time.Second:
		return 60 * time.Second
	default:
		return d
	}
}

// fetchableJobs sends Get-Jobs with which-jobs=fetchable (spec.md §4.F
// step 5).
func (c *client) fetchableJobs() ([]int, error) {
	req := c.newRequest(ipp.OperationGetJobs)
	req.OperationAttributes["which-jobs"] = "fetchable"

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, group := range resp.JobAttributes {
		if id, ok := attrInt(group, "job-id"); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fetchedJob is what Fetch-Job hands back: the job's upstream id, the
// parent job's UUID (used to key the proxy's proxy_jobs table), and
// its document count.
type fetchedJob struct {
	JobID       int
	ParentUUID  string
	DocumentCnt int
}

// fetchJob retrieves one fetchable job's attributes (spec.md §4.F
// step 5).
func (c *client) fetchJob(jobID int) (*fetchedJob, error) {
	req := c.newRequest(opFetchJob)
	req.OperationAttributes["job-id"] = jobID

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(resp.JobAttributes) == 0 {
		return nil, fmt.Errorf("%w: Fetch-Job response has no job attributes", ippcore.ErrRemoteIPP)
	}
	group := resp.JobAttributes[0]

	fj := &fetchedJob{JobID: jobID, DocumentCnt: 1}
	if uuid, ok := attrString(group, "job-uuid"); ok {
		fj.ParentUUID = uuid
	}
	if n, ok := attrInt(group, "number-of-documents"); ok && n > 0 {
		fj.DocumentCnt = n
	}
	return fj, nil
}

// acknowledgeJob confirms receipt of a fetched job (spec.md §4.F step 5).
func (c *client) acknowledgeJob(jobID int) error {
	req := c.newRequest(opAcknowledgeJob)
	req.OperationAttributes["job-id"] = jobID
	_, err := c.do(req)
	return err
}

// fetchDocument retrieves one document's bytes for jobID/docNumber
// (spec.md §4.F step 5). The document body rides after the IPP
// attribute groups in the response, the same framing Fetch-Document
// uses across IPP client libraries.
func (c *client) fetchDocument(jobID, docNumber int) ([]byte, string, error) {
	req := c.newRequest(opFetchDocument)
	req.OperationAttributes["job-id"] = jobID
	req.OperationAttributes["document-number"] = docNumber
	req.OperationAttributes["compression-accepted"] = "none"

	payload, err := req.Encode()
	if err != nil {
		return nil, "", fmt.Errorf("%w: encoding Fetch-Document: %v", ippcore.ErrRemoteIPP, err)
	}
	resp, err := c.post(payload)
	if err != nil {
		return nil, "", err
	}

	format := "application/octet-stream"
	if len(resp.JobAttributes) > 0 {
		if f, ok := attrString(resp.JobAttributes[0], "document-format"); ok {
			format = f
		}
	}
	return resp.Data, format, nil
}

// acknowledgeDocument confirms receipt of a fetched document (spec.md
// §4.F step 5).
func (c *client) acknowledgeDocument(jobID, docNumber int) error {
	req := c.newRequest(opAcknowledgeDocument)
	req.OperationAttributes["job-id"] = jobID
	req.OperationAttributes["document-number"] = docNumber
	_, err := c.do(req)
	return err
}

// updateJobStatus reports a local job's state upstream (spec.md §4.F).
func (c *client) updateJobStatus(jobID int, state ippcore.JobState) error {
	req := c.newRequest(opUpdateJobStatus)
	req.OperationAttributes["job-id"] = jobID
	req.OperationAttributes["output-device-job-state"] = int(state)
	_, err := c.do(req)
	return err
}

// updateDocumentStatus reports a local document's state upstream
// (spec.md §4.F).
func (c *client) updateDocumentStatus(jobID, docNumber int, state ippcore.JobState) error {
	req := c.newRequest(opUpdateDocumentStatus)
	req.OperationAttributes["job-id"] = jobID
	req.OperationAttributes["document-number"] = docNumber
	req.OperationAttributes["output-device-document-state"] = int(state)
	_, err := c.do(req)
	return err
}
