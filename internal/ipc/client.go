package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the agent.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks that the agent answers on the socket.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Binder.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the agent status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Binder.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the agent to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Binder.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Workbooks lists the workbooks open in the bridged Excel instance.
func (c *Client) Workbooks() (*WorkbooksResponse, error) {
	var resp WorkbooksResponse
	if err := c.client.Call("Binder.Workbooks", WorkbooksRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Save saves the named workbooks, or all open workbooks when names is empty.
func (c *Client) Save(names []string) (*SaveResponse, error) {
	var resp SaveResponse
	req := SaveRequest{Names: names}
	if err := c.client.Call("Binder.Save", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseWorkbooks closes the named workbooks, optionally saving first.
func (c *Client) CloseWorkbooks(names []string, save bool) (*CloseResponse, error) {
	var resp CloseResponse
	req := CloseRequest{Names: names, Save: save}
	if err := c.client.Call("Binder.Close", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate foregrounds a workbook, optionally selecting a sheet and cell.
func (c *Client) Activate(name, sheet, cell string) (*ActivateResponse, error) {
	var resp ActivateResponse
	req := ActivateRequest{Name: name, Sheet: sheet, Cell: cell}
	if err := c.client.Call("Binder.Activate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionSave snapshots the open workbooks into a session file.
func (c *Client) SessionSave(name string) (*SessionSaveResponse, error) {
	var resp SessionSaveResponse
	req := SessionSaveRequest{Name: name}
	if err := c.client.Call("Binder.SessionSave", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionLoad restores workbooks from a session file.
func (c *Client) SessionLoad(path string, force bool) (*SessionLoadResponse, error) {
	var resp SessionLoadResponse
	req := SessionLoadRequest{Path: path, Force: force}
	if err := c.client.Call("Binder.SessionLoad", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionList lists stored session files, newest first.
func (c *Client) SessionList() (*SessionListResponse, error) {
	var resp SessionListResponse
	if err := c.client.Call("Binder.SessionList", SessionListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionExport copies a session file to a destination path.
func (c *Client) SessionExport(source, dest string) (*SessionExportResponse, error) {
	var resp SessionExportResponse
	req := SessionExportRequest{Source: source, Dest: dest}
	if err := c.client.Call("Binder.SessionExport", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinksScan scans open workbooks for external references.
func (c *Client) LinksScan() (*LinksScanResponse, error) {
	var resp LinksScanResponse
	if err := c.client.Call("Binder.LinksScan", LinksScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinksUpdate plans and executes a link update run.
func (c *Client) LinksUpdate() (*LinksUpdateResponse, error) {
	var resp LinksUpdateResponse
	if err := c.client.Call("Binder.LinksUpdate", LinksUpdateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcsHealth inspects Excel process health.
func (c *Client) ProcsHealth() (*ProcsHealthResponse, error) {
	var resp ProcsHealthResponse
	if err := c.client.Call("Binder.ProcsHealth", ProcsHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcsCleanup reaps zombie Excel processes.
func (c *Client) ProcsCleanup() (*ProcsCleanupResponse, error) {
	var resp ProcsCleanupResponse
	if err := c.client.Call("Binder.ProcsCleanup", ProcsCleanupRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcsForceClose closes every Excel process, optionally saving first.
func (c *Client) ProcsForceClose(save bool) (*ProcsForceCloseResponse, error) {
	var resp ProcsForceCloseResponse
	req := ProcsForceCloseRequest{Save: save}
	if err := c.client.Call("Binder.ProcsForceClose", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PerfReport renders the performance report.
func (c *Client) PerfReport() (*PerfReportResponse, error) {
	var resp PerfReportResponse
	if err := c.client.Call("Binder.PerfReport", PerfReportRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NotifyTest triggers a notification test via the agent.
func (c *Client) NotifyTest() (*NotifyTestResponse, error) {
	var resp NotifyTestResponse
	if err := c.client.Call("Binder.NotifyTest", NotifyTestRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryList returns recorded runs, optionally filtered by kind.
func (c *Client) HistoryList(kind string, limit int) (*HistoryListResponse, error) {
	var resp HistoryListResponse
	req := HistoryListRequest{Kind: kind, Limit: limit}
	if err := c.client.Call("Binder.HistoryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryGet fetches one recorded run by id.
func (c *Client) HistoryGet(runID string) (*HistoryGetResponse, error) {
	var resp HistoryGetResponse
	req := HistoryGetRequest{RunID: runID}
	if err := c.client.Call("Binder.HistoryGet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryStats returns aggregate run counts.
func (c *Client) HistoryStats() (*HistoryStatsResponse, error) {
	var resp HistoryStatsResponse
	if err := c.client.Call("Binder.HistoryStats", HistoryStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryClear removes all recorded runs.
func (c *Client) HistoryClear() (*HistoryClearResponse, error) {
	var resp HistoryClearResponse
	if err := c.client.Call("Binder.HistoryClear", HistoryClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
