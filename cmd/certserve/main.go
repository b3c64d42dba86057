// Copyright 2025 Certen Protocol
//
// certserve is a demo host for the asset router (C11): it walks a data
// directory, certifies every file under it, and serves the result over
// plain net/http, translating to and from the core's in-memory
// httpmsg.Request/Response values at the edge — the core itself never
// speaks HTTP on the wire. Graceful shutdown and the separate
// metrics/main listener split follow the teacher's main.go.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/http-certification-core/assetrouter"
	"github.com/certen/http-certification-core/internal/certificate"
	"github.com/certen/http-certification-core/internal/config"
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpmsg"
	"github.com/certen/http-certification-core/pkg/crypto/bls"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "certserve: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	canisterID, err := cfg.CanisterIDBytes()
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "[certserve] ", log.LstdFlags)

	priv, err := loadOrGenerateKey(cfg.BLSKeyPath)
	if err != nil {
		return fmt.Errorf("load bls key: %w", err)
	}

	registry := prometheus.NewRegistry()
	router := assetrouter.NewRouter(logger, registry)

	assets, configs, err := walkDataDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("walk data dir: %w", err)
	}
	tree, err := router.CertifyAssets(assets, configs)
	if err != nil {
		return fmt.Errorf("certify assets: %w", err)
	}
	logger.Printf("certified %d assets from %s, root hash computed", len(assets), cfg.DataDir)

	dataCert := signDataCertificate(priv, canisterID, tree, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleAsset(router, dataCert, logger))

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Printf("serving certified assets on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("asset server: %v", err)
		}
	}()
	go func() {
		logger.Printf("serving metrics on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("metrics server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("asset server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
	}
	return nil
}

// loadOrGenerateKey reads a hex-encoded BLS private key from path,
// generating and persisting a fresh one if the file is absent.
func loadOrGenerateKey(path string) (*bls.PrivateKey, error) {
	if err := bls.Initialize(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err == nil {
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode key file: %w", err)
		}
		return bls.PrivateKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	priv, _, genErr := bls.GenerateKeyPair()
	if genErr != nil {
		return nil, genErr
	}
	if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
		return nil, mkErr
	}
	if writeErr := os.WriteFile(path, []byte(priv.Hex()), 0600); writeErr != nil {
		return nil, writeErr
	}
	return priv, nil
}

// signDataCertificate signs a minimal state tree committing the router's
// tree root hash at ["canister", canisterID, "certified_data"].
func signDataCertificate(priv *bls.PrivateKey, canisterID []byte, tree *hashtree.Tree, logger *log.Logger) *assetrouter.DataCertificate {
	root := tree.RootHash()
	stateTree := hashtree.Labeled([]byte("canister"),
		hashtree.Labeled(canisterID,
			hashtree.Labeled([]byte("certified_data"), hashtree.Leaf(root[:])),
		),
	)
	stateRoot := stateTree.RootHash()
	msg := append([]byte("\x0Bic-state-root"), stateRoot[:]...)
	sig := priv.Sign(msg)

	logger.Printf("state certificate: %d committed leaf entries under canister %x", len(hashtree.Leaves(stateTree)), canisterID)

	return &assetrouter.DataCertificate{
		Tree:       tree,
		Cert:       &certificate.Certificate{Tree: stateTree, Signature: sig.Bytes()},
		CanisterID: canisterID,
	}
}

// walkDataDir reads every regular file under dir into an Asset, and
// builds one File config per asset keyed by its path relative to dir.
func walkDataDir(dir string) ([]assetrouter.Asset, []assetrouter.Config, error) {
	var assets []assetrouter.Asset
	var configs []assetrouter.Config

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		url := "/" + filepath.ToSlash(rel)

		assets = append(assets, assetrouter.Asset{Path: url, Content: content})
		configs = append(configs, assetrouter.File{
			Path:        url,
			URL:         url,
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return assets, configs, nil
}

// handleAsset adapts net/http to the router's httpmsg-based ServeAsset.
func handleAsset(router *assetrouter.Router, dataCert *assetrouter.DataCertificate, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &httpmsg.Request{Method: r.Method, URL: r.URL.RequestURI()}
		for name, values := range r.Header {
			for _, v := range values {
				req.Headers = append(req.Headers, httpmsg.Header{Name: name, Value: v})
			}
		}

		resp, err := router.ServeAsset(dataCert, req)
		if err != nil {
			logger.Printf("serve %s: %v", r.URL.Path, err)
			http.NotFound(w, r)
			return
		}

		for _, h := range resp.Headers {
			w.Header().Add(h.Name, h.Value)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}
