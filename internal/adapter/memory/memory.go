package memory

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jun/cloudmover/internal/adapter"
)

// RootID is the id of every drive's root folder, named "My Drive".
const RootID = "root"

const nativePrefix = "application/vnd.google-apps."

// Op names a recorded client call.
type Op string

const (
	OpList        Op = "list"
	OpGetMetadata Op = "get"
	OpDownload    Op = "download"
	OpExport      Op = "export"
	OpUpload      Op = "upload"
	OpDelete      Op = "delete"
	OpAbout       Op = "about"
)

// Call is one entry of the call log. Target is the object or folder id;
// for uploads it is the new object's name.
type Call struct {
	Op     Op
	Target string
}

// Limits caps what a drive accepts. Zero fields are unlimited.
type Limits struct {
	MaxNameLength  int
	MaxContentSize int
	MaxItems       int
}

// DemoLimits are applied to drives created for dev mode.
var DemoLimits = Limits{
	MaxNameLength:  255,
	MaxContentSize: 256 * 1024,
	MaxItems:       50,
}

type object struct {
	meta    adapter.ObjectMetadata
	content []byte
}

type failure struct {
	op     Op
	target string
	err    error
}

// Drive implements adapter.ObjectClient in process.
// It records every call and can be told to fail specific ones.
type Drive struct {
	mu       sync.RWMutex
	objects  map[string]*object
	calls    []Call
	failures []failure
	limits   Limits
	account  adapter.Account
	now      func() time.Time
}

// NewDrive creates an empty drive owned by email.
func NewDrive(email string, limits Limits) *Drive {
	d := &Drive{
		objects: make(map[string]*object),
		limits:  limits,
		account: adapter.Account{Email: email, DisplayName: email, LimitBytes: 15 << 30},
		now:     time.Now,
	}
	now := d.now()
	d.objects[RootID] = &object{meta: adapter.ObjectMetadata{
		ID:           RootID,
		Name:         "My Drive",
		MIMEType:     adapter.FolderMIMEType,
		CreatedTime:  now,
		ModifiedTime: now,
	}}
	return d
}

// Fail makes every later op call on target return err. An empty target matches any id.
func (d *Drive) Fail(op Op, target string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, failure{op: op, target: target, err: err})
}

// Calls returns a copy of the call log.
func (d *Drive) Calls() []Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.calls)
}

// Ops returns just the operations of the call log, in order.
func (d *Drive) Ops() []Op {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ops := make([]Op, len(d.calls))
	for i, c := range d.calls {
		ops[i] = c.Op
	}
	return ops
}

// AddFolder creates a folder under parentID and returns its id.
func (d *Drive) AddFolder(name, parentID string) string {
	return d.add(name, adapter.FolderMIMEType, parentID, nil)
}

// AddFile creates a file under parentID and returns its id.
func (d *Drive) AddFile(name, mimeType, parentID string, content []byte) string {
	return d.add(name, mimeType, parentID, content)
}

func (d *Drive) add(name, mimeType, parentID string, content []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insert(name, mimeType, parentID, content).meta.ID
}

// insert requires d.mu to be held.
func (d *Drive) insert(name, mimeType, parentID string, content []byte) *object {
	now := d.now()
	obj := &object{
		meta: adapter.ObjectMetadata{
			ID:           uuid.New().String(),
			Name:         name,
			MIMEType:     mimeType,
			CreatedTime:  now,
			ModifiedTime: now,
		},
		content: content,
	}
	if parentID != "" {
		obj.meta.Parents = []string{parentID}
	}
	if mimeType != adapter.FolderMIMEType && !strings.HasPrefix(mimeType, nativePrefix) {
		size := int64(len(content))
		obj.meta.Size = &size
		d.account.UsageBytes += size
	}
	obj.meta.WebViewLink = "https://drive.example.test/" + obj.meta.ID
	d.objects[obj.meta.ID] = obj
	return obj
}

// record logs the call and returns the injected failure, if any. Requires d.mu.
func (d *Drive) record(op Op, target string) error {
	d.calls = append(d.calls, Call{Op: op, Target: target})
	for _, f := range d.failures {
		if f.op == op && (f.target == "" || f.target == target) {
			return f.err
		}
	}
	return nil
}

func notFound(id string) error {
	return &adapter.RemoteAPIError{Status: http.StatusNotFound, Message: "File not found: " + id}
}

func (d *Drive) List(ctx context.Context, req adapter.ListRequest) (*adapter.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := req.Query.Build(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpList, folderOf(req.Query)); err != nil {
		return nil, err
	}

	var matched []adapter.ObjectMetadata
	for _, obj := range d.objects {
		if req.Query.Match(&obj.meta) {
			matched = append(matched, obj.meta)
		}
	}
	sortObjects(matched, req.OrderBy)

	offset := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 0 {
			return nil, &adapter.RemoteAPIError{Status: http.StatusBadRequest, Message: "Invalid page token"}
		}
		offset = min(n, len(matched))
	}
	size := int(req.PageSize)
	if size <= 0 {
		size = 100
	}
	end := min(offset+size, len(matched))

	page := &adapter.Page{Items: slices.Clone(matched[offset:end])}
	if end < len(matched) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// folderOf extracts the parent id from an "in parents" clause for the call log.
func folderOf(q adapter.Query) string {
	for _, c := range q.Clauses() {
		if rest, ok := strings.CutSuffix(c, " in parents"); ok {
			return strings.Trim(rest, "'")
		}
	}
	return ""
}

// sortObjects applies a Drive-style orderBy such as "folder,name desc".
func sortObjects(items []adapter.ObjectMetadata, orderBy string) {
	if orderBy == "" {
		orderBy = "name"
	}
	keys := strings.Split(orderBy, ",")

	slices.SortStableFunc(items, func(a, b adapter.ObjectMetadata) int {
		for _, k := range keys {
			field, dir, _ := strings.Cut(strings.TrimSpace(k), " ")
			var c int
			switch field {
			case "folder":
				// Folders sort first in ascending order.
				c = cmp.Compare(boolRank(!a.IsFolder()), boolRank(!b.IsFolder()))
			case "name", "name_natural":
				c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "modifiedTime":
				c = a.ModifiedTime.Compare(b.ModifiedTime)
			case "createdTime":
				c = a.CreatedTime.Compare(b.CreatedTime)
			}
			if dir == "desc" {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Drive) GetMetadata(ctx context.Context, objectID string) (*adapter.ObjectMetadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpGetMetadata, objectID); err != nil {
		return nil, err
	}
	obj, ok := d.objects[objectID]
	if !ok {
		return nil, notFound(objectID)
	}
	m := obj.meta
	m.Parents = slices.Clone(m.Parents)
	return &m, nil
}

func (d *Drive) Download(ctx context.Context, objectID string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpDownload, objectID); err != nil {
		return nil, err
	}
	obj, ok := d.objects[objectID]
	if !ok {
		return nil, notFound(objectID)
	}
	if strings.HasPrefix(obj.meta.MIMEType, nativePrefix) {
		return nil, &adapter.RemoteAPIError{
			Status:  http.StatusForbidden,
			Message: "Only files with binary content can be downloaded. Use Export with Docs Editors files.",
		}
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (d *Drive) Export(ctx context.Context, objectID, targetMIME string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpExport, objectID); err != nil {
		return nil, err
	}
	obj, ok := d.objects[objectID]
	if !ok {
		return nil, notFound(objectID)
	}
	if !strings.HasPrefix(obj.meta.MIMEType, nativePrefix) || obj.meta.IsFolder() {
		return nil, &adapter.RemoteAPIError{
			Status:  http.StatusForbidden,
			Message: "Export only supports Docs Editors files.",
		}
	}
	out := fmt.Appendf(nil, "%s\n", targetMIME)
	return io.NopCloser(bytes.NewReader(append(out, obj.content...))), nil
}

func (d *Drive) Upload(ctx context.Context, req adapter.UploadRequest) (*adapter.ObjectMetadata, error) {
	// Read before locking; the reader may be slow.
	content, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpUpload, req.Name); err != nil {
		return nil, err
	}
	if err := d.checkLimits(req.Name, len(content)); err != nil {
		return nil, err
	}
	parentID := cmp.Or(req.ParentID, RootID)
	parent, ok := d.objects[parentID]
	if !ok || !parent.meta.IsFolder() {
		return nil, notFound(parentID)
	}

	obj := d.insert(req.Name, req.MIMEType, parentID, content)
	m := obj.meta
	return &m, nil
}

// checkLimits requires d.mu.
func (d *Drive) checkLimits(name string, size int) error {
	l := d.limits
	if l.MaxNameLength > 0 && len(name) > l.MaxNameLength {
		return &adapter.RemoteAPIError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("name too long (max %d characters)", l.MaxNameLength),
		}
	}
	if l.MaxContentSize > 0 && size > l.MaxContentSize {
		return &adapter.RemoteAPIError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("content too large (max %d bytes)", l.MaxContentSize),
		}
	}
	if l.MaxItems > 0 && len(d.objects)-1 >= l.MaxItems {
		return &adapter.RemoteAPIError{
			Status:  http.StatusForbidden,
			Message: fmt.Sprintf("item limit reached for demo mode (max %d items)", l.MaxItems),
		}
	}
	return nil
}

// Delete removes the object and, for folders, everything under it.
func (d *Drive) Delete(ctx context.Context, objectID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpDelete, objectID); err != nil {
		return false, err
	}
	if _, ok := d.objects[objectID]; !ok {
		return false, nil
	}
	d.deleteTree(objectID)
	return true, nil
}

// deleteTree requires d.mu.
func (d *Drive) deleteTree(id string) {
	obj, ok := d.objects[id]
	if !ok {
		return
	}
	delete(d.objects, id)
	if obj.meta.Size != nil {
		d.account.UsageBytes -= *obj.meta.Size
	}
	for childID, child := range d.objects {
		if slices.Contains(child.meta.Parents, id) {
			d.deleteTree(childID)
		}
	}
}

func (d *Drive) About(ctx context.Context) (*adapter.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpAbout, ""); err != nil {
		return nil, err
	}
	acct := d.account
	return &acct, nil
}

var _ adapter.ObjectClient = (*Drive)(nil)
