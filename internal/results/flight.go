package results

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"boxtrace/internal/logger"
)

const defaultFlightTimeout = 30 * time.Second

// FlightPublisher ships score grids to an Arrow Flight collector over gRPC.
type FlightPublisher struct {
	addr    string
	timeout time.Duration
	client  flight.Client
	log     *logger.Logger
}

// NewFlightPublisher builds a publisher for the given host:port. Connect must
// be called before publishing.
func NewFlightPublisher(addr string) *FlightPublisher {
	return &FlightPublisher{
		addr:    addr,
		timeout: defaultFlightTimeout,
		log:     logger.Log.With("flight"),
	}
}

// Connect dials the collector with transport-level insecure credentials, the
// deployment's in-cluster default.
func (p *FlightPublisher) Connect(_ context.Context) error {
	client, err := flight.NewClientWithMiddleware(p.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial flight collector %s: %w", p.addr, err)
	}
	p.client = client
	p.log.Info("connected", "addr", p.addr)
	return nil
}

func (p *FlightPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// PublishGrids streams every grid as one record via DoPut. The run name rides
// in the flight descriptor path together with the grid name.
func (p *FlightPublisher) PublishGrids(ctx context.Context, run string, grids []Grid) error {
	if p.client == nil {
		return fmt.Errorf("publisher not connected, call Connect first")
	}
	if len(grids) == 0 {
		return fmt.Errorf("no grids to publish")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for _, g := range grids {
		if err := p.publishGrid(ctx, run, g); err != nil {
			return err
		}
	}
	p.log.Info("published grids", "run", run, "count", len(grids))
	return nil
}

func (p *FlightPublisher) publishGrid(ctx context.Context, run string, g Grid) error {
	rec, err := GridRecord(g.Name, g.Cells)
	if err != nil {
		return err
	}
	defer rec.Release()
	return p.PublishRecord(ctx, []string{run, g.Name}, rec)
}

// PublishRecord streams a single record via DoPut under the given descriptor
// path and drains the collector's acknowledgements.
func (p *FlightPublisher) PublishRecord(ctx context.Context, path []string, rec arrow.Record) error {
	if p.client == nil {
		return fmt.Errorf("publisher not connected, call Connect first")
	}

	stream, err := p.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("open DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: path,
	})
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write record %v: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close record writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}

	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("record %v: collector rejected put: %w", path, err)
		}
	}
	return nil
}

// Schema exposes the grid record schema for collectors that register it ahead
// of the first put.
func (p *FlightPublisher) Schema(name string) *arrow.Schema {
	return gridSchema(name)
}
