// Command construct builds a flat graph index from an ann-benchmarks .npy
// dataset and writes it to disk.
//
// Usage:
//
//	construct [-config file.yaml] <quantize> <metric> <data> <M> <ef_construction> <outfile>
//
//	<quantize>         0 for exact payloads, 1 for product quantization
//	<metric>           0 for squared L2, 1 for inner product (angular)
//	<data>             2-D .npy file of vectors
//	<M>                max links per node
//	<ef_construction>  beam width during insertion
//	<outfile>          where to write the index
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sanonone/flatgraph/internal/npy"
	"github.com/sanonone/flatgraph/pkg/core/distance"
	"github.com/sanonone/flatgraph/pkg/core/graph"
	"github.com/sanonone/flatgraph/pkg/core/quantization"
	"github.com/sanonone/flatgraph/pkg/metrics"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "construct [-config file.yaml] <quantize> <metric> <data> <M> <ef_construction> <outfile>")
	fmt.Fprintln(os.Stderr, "\t <quantize> int, 0 for no quantization, 1 for quantization")
	fmt.Fprintln(os.Stderr, "\t <metric> int, 0 for L2, 1 for inner product (angular)")
	fmt.Fprintln(os.Stderr, "\t <data> npy file from ann-benchmarks")
	fmt.Fprintln(os.Stderr, "\t <M>: int")
	fmt.Fprintln(os.Stderr, "\t <ef_construction>: int")
	fmt.Fprintln(os.Stderr, "\t <outfile>: where to stash the index")
}

func main() {
	configPath := flag.String("config", "", "optional YAML file with tool defaults")
	flag.Usage = usage
	flag.Parse()

	if err := run(*configPath, flag.Args()); err != nil {
		slog.Error("construct failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	if len(args) != 6 {
		usage()
		return fmt.Errorf("expected 6 arguments, got %d", len(args))
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	quantizeArg, err := strconv.Atoi(args[0])
	if err != nil {
		usage()
		return fmt.Errorf("quantize: %w", err)
	}
	metricArg, err := strconv.Atoi(args[1])
	if err != nil {
		usage()
		return fmt.Errorf("metric: %w", err)
	}
	datasetPath := args[2]
	m, err := strconv.Atoi(args[3])
	if err != nil {
		usage()
		return fmt.Errorf("M: %w", err)
	}
	efConstruction, err := strconv.Atoi(args[4])
	if err != nil {
		usage()
		return fmt.Errorf("ef_construction: %w", err)
	}
	outfile := args[5]

	quantize := quantizeArg != 0
	metric := distance.Euclidean
	if metricArg != 0 {
		metric = distance.InnerProduct
	}

	dataset, err := npy.ReadFile(datasetPath)
	if err != nil {
		return err
	}
	slog.Info("loaded dataset",
		"path", datasetPath, "vectors", dataset.Rows, "dimension", dataset.Cols)

	space, err := distance.NewSpace(metric, dataset.Cols)
	if err != nil {
		return err
	}

	opts := []graph.Option{graph.WithNumInitializations(cfg.NumInitializations)}
	if quantize {
		pq, err := trainQuantizer(cfg, metric, dataset)
		if err != nil {
			return err
		}
		opts = append(opts, graph.WithQuantizer(pq))
	}

	idx, err := graph.New(space, dataset.Rows, m, opts...)
	if err != nil {
		return err
	}

	if err := build(cfg, idx, dataset, efConstruction); err != nil {
		return err
	}

	switch cfg.Reorder {
	case "gorder":
		slog.Info("reordering", "algorithm", "gorder", "window", cfg.GorderWindow)
		if err := idx.ReorderGorder(cfg.GorderWindow); err != nil {
			return err
		}
	case "rcm":
		slog.Info("reordering", "algorithm", "rcm")
		if err := idx.ReorderRCM(); err != nil {
			return err
		}
	}

	// A quantized index cannot be persisted: the snapshot format carries
	// no codebooks, so a written file would be uninterpretable.
	if err := idx.SaveFile(outfile); err != nil {
		return err
	}
	slog.Info("index saved", "path", outfile,
		"nodes", idx.Len(), "node_bytes", idx.NodeSizeBytes())
	return nil
}

func trainQuantizer(cfg toolConfig, metric distance.DistanceMetric, dataset *npy.Matrix) (*quantization.ProductQuantizer, error) {
	pq, err := quantization.New(dataset.Cols, cfg.PQ.Subquantizers, cfg.PQ.Bits, metric,
		quantization.WithIterations(cfg.PQ.Iterations),
		quantization.WithInitStrategy(quantization.InitStrategy(cfg.PQ.Init)))
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, dataset.Rows)
	for i := range vectors {
		vectors[i] = dataset.Row(i)
	}

	start := time.Now()
	if err := pq.Train(vectors); err != nil {
		return nil, err
	}
	slog.Info("quantizer trained",
		"subquantizers", cfg.PQ.Subquantizers, "bits", cfg.PQ.Bits,
		"code_bytes", pq.CodeSize(), "took", time.Since(start))
	return pq, nil
}

func build(cfg toolConfig, idx *graph.Index, dataset *npy.Matrix, efConstruction int) error {
	gauge := metrics.VectorsIndexed.With(prometheus.Labels{"index": "construct"})

	start := time.Now()
	for i := 0; i < dataset.Rows; i++ {
		ok, err := idx.Add(dataset.Row(i), uint64(i), efConstruction)
		if err != nil {
			metrics.InsertsTotal.WithLabelValues("construct", "error").Inc()
			return fmt.Errorf("insert %d: %w", i, err)
		}
		if !ok {
			metrics.InsertsTotal.WithLabelValues("construct", "full").Inc()
			return fmt.Errorf("index full after %d inserts", i)
		}
		metrics.InsertsTotal.WithLabelValues("construct", "ok").Inc()
		gauge.Set(float64(idx.Len()))

		if cfg.ProgressEvery > 0 && (i+1)%cfg.ProgressEvery == 0 {
			slog.Info("building", "inserted", i+1, "total", dataset.Rows)
		}
	}

	took := time.Since(start)
	metrics.BuildDuration.Observe(took.Seconds())
	slog.Info("build finished", "vectors", idx.Len(), "took", took)
	return nil
}
