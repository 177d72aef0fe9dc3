package influx

import (
	"log"
	"sync"
	"time"

	"github.com/diamondburned/vmdk2qcow2/internal/telemetry"
	"github.com/pkg/errors"

	client "github.com/influxdata/influxdb1-client/v2"
)

type Config struct {
	Database string `env:"VMDK2QCOW2_INFLUX_DATABASE"` // default "vmdk2qcow2"
	Address  string `env:"VMDK2QCOW2_INFLUX_ADDRESS"`
	Username string `env:"VMDK2QCOW2_INFLUX_USERNAME"`
	Password string `env:"VMDK2QCOW2_INFLUX_PASSWORD"`
}

func (c Config) batchPts() client.BatchPoints {
	b, _ := client.NewBatchPoints(client.BatchPointsConfig{
		Database: c.Database,
	})
	return b
}

type Client struct {
	cli client.Client
	cfg Config
	pts chan *client.Point
	cls chan struct{}
	wg  *sync.WaitGroup
}

var _ telemetry.Telemeter = (*Client)(nil)

func NewClient(cfg Config) (telemetry.Telemeter, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to make a new Influx client")
	}

	if cfg.Database == "" {
		cfg.Database = "vmdk2qcow2"
	}

	r, err := c.Query(client.NewQuery("CREATE DATABASE "+cfg.Database, "", ""))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to send query request")
	}
	if r.Err != "" {
		return nil, errors.Wrap(r.Error(), "Failed to create database")
	}

	var pts = make(chan *client.Point, 25)
	var cls = make(chan struct{})

	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		var ticker = time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		defer wg.Done()

		var batch = cfg.batchPts()

		for {
			select {
			case <-cls:
				// Most runs last shorter than a tick, so pick up whatever is
				// still queued before the final write.
			Drain:
				for {
					select {
					case p := <-pts:
						batch.AddPoint(p)
					default:
						break Drain
					}
				}
				if len(batch.Points()) > 0 {
					writeBatch(c, batch)
				}
				return
			case <-ticker.C:
				if len(batch.Points()) > 0 {
					writeBatch(c, batch)
					// Make a new set of batch points.
					batch = cfg.batchPts()
				}
			case p := <-pts:
				// Add the point into the batch list.
				batch.AddPoint(p)
			}
		}
	}()

	return &Client{
		cli: c,
		cfg: cfg,
		pts: pts,
		cls: cls,
		wg:  &wg,
	}, nil
}

func writeBatch(c client.Client, b client.BatchPoints) {
	if err := c.Write(b); err != nil {
		log.Println("[telemetry] InfluxDB: Failed to write batch points:", err)
	}
}

func (c *Client) WriteDuration(dura time.Duration, name string, attrs telemetry.Extras) {
	var now = time.Now()

	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	attrs["duration"] = dura.Nanoseconds()

	p, err := client.NewPoint(name, nil, attrs, now)
	if err != nil {
		log.Println("BUG: NewPoint errored out:", err)
		return
	}

	c.pts <- p
}

// Error records err as an "error" point. Exported attributes become fields.
func (c *Client) Error(err error) {
	var fields = map[string]interface{}{}
	for k, v := range telemetry.Attrs(err) {
		fields[k] = v
	}

	p, perr := client.NewPoint("error", nil, fields, time.Now())
	if perr != nil {
		log.Println("BUG: NewPoint errored out:", perr)
		return
	}

	c.pts <- p
}

func (c *Client) Close() {
	close(c.cls)
	c.wg.Wait()
	c.cli.Close()
}
