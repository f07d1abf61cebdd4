package memory

import (
	"context"
	"sync"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/model"
)

// SeedFunc populates a freshly created drive.
type SeedFunc func(d *Drive)

// Provider hands out one Drive per access token.
type Provider struct {
	limits Limits
	seed   SeedFunc

	mu     sync.Mutex
	drives map[string]*Drive
}

// NewProvider creates a provider whose drives use limits and are populated by seed.
// seed may be nil.
func NewProvider(limits Limits, seed SeedFunc) *Provider {
	return &Provider{
		limits: limits,
		seed:   seed,
		drives: make(map[string]*Drive),
	}
}

// Drive returns the drive for key, creating it on first use.
func (p *Provider) Drive(key string) *Drive {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drives[key]
	if !ok {
		d = NewDrive(key+"@demo.local", p.limits)
		if p.seed != nil {
			p.seed(d)
		}
		p.drives[key] = d
	}
	return d
}

func (p *Provider) ClientFor(ctx context.Context, bundle *model.CredentialBundle) (adapter.ObjectClient, error) {
	return p.Drive(bundle.AccessToken), nil
}

// SeedDemo lays out a small tree with one of each kind of object.
func SeedDemo(d *Drive) {
	docs := d.AddFolder("Documents", RootID)
	photos := d.AddFolder("Photos", RootID)
	trips := d.AddFolder("Trips", photos)

	d.AddFile("README.txt", "text/plain", RootID, []byte("Welcome to the demo drive.\n"))
	d.AddFile("Quarterly Report", "application/vnd.google-apps.document", docs, []byte("Q3 numbers"))
	d.AddFile("Budget", "application/vnd.google-apps.spreadsheet", docs, []byte("a,b\n1,2\n"))
	d.AddFile("notes.md", "text/markdown", docs, []byte("# Notes\n"))
	d.AddFile("beach.jpg", "image/jpeg", trips, []byte{0xff, 0xd8, 0xff, 0xe0})
	d.AddFile("clip.mp4", "video/mp4", trips, make([]byte, 2048))
	d.AddFile("archive.zip", "application/zip", RootID, make([]byte, 1536))
}
