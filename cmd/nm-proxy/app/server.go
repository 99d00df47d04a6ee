// Copyright (c) The NodeMesh Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/admin"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/api"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/server"
	"github.com/nodemesh-net/nodemesh/pkg/util/runnable"
	utiltls "github.com/nodemesh-net/nodemesh/pkg/util/tls"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

const (
	// logLevel is the default log level.
	logLevel = "warn"

	// CAFile is the path to the certificate authority file.
	CAFile = "/etc/ssl/certs/nodemesh_ca.pem"
	// CertificateFile is the path to the certificate file.
	CertificateFile = "/etc/ssl/certs/nodemesh-proxy.pem"
	// KeyFile is the path to the private-key file.
	KeyFile = "/etc/ssl/private/nodemesh-proxy.pem"
)

// Options contains everything necessary to create and run a proxy.
type Options struct {
	// Node is the name of the node this proxy serves.
	Node string
	// WorkloadsFile is the path to the workload records file.
	WorkloadsFile string
	// OutboundAddress is the listen address of the egress proxy.
	OutboundAddress string
	// TunnelAddress is the listen address of the inbound tunnel server.
	TunnelAddress string
	// AuthzAddress is the listen address of the authorization gRPC server.
	AuthzAddress string
	// AdminAddress is the listen address of the management server.
	AdminAddress string
	// LogFile is the path to file where logs will be written.
	LogFile string
	// LogLevel is the log level.
	LogLevel string
}

// AddFlags adds flags to fs and binds them to options.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Node, "node", "",
		"The name of the node this proxy serves.")
	fs.StringVar(&o.WorkloadsFile, "workloads-file", "",
		"Path to a JSON file holding the workload records. The file is watched for changes.")
	fs.StringVar(&o.OutboundAddress, "outbound-address",
		net.JoinHostPort("127.0.0.1", strconv.Itoa(api.OutboundPort)),
		"The listen address of the egress proxy.")
	fs.StringVar(&o.TunnelAddress, "tunnel-address",
		net.JoinHostPort("", strconv.Itoa(api.TunnelPort)),
		"The listen address of the inbound tunnel server.")
	fs.StringVar(&o.AuthzAddress, "authz-address",
		net.JoinHostPort("", strconv.Itoa(api.AuthzPort)),
		"The listen address of the authorization gRPC server.")
	fs.StringVar(&o.AdminAddress, "admin-address",
		net.JoinHostPort("127.0.0.1", strconv.Itoa(api.AdminPort)),
		"The listen address of the management server.")
	fs.StringVar(&o.LogFile, "log-file", "",
		"Path to a file where logs will be written. If not specified, logs will be printed to stderr.")
	fs.StringVar(&o.LogLevel, "log-level", logLevel,
		"The log level. One of fatal, error, warn, info, debug.")
}

// RequiredFlags are the names of flags that must be explicitly specified.
func (o *Options) RequiredFlags() []string {
	return []string{"node"}
}

// Run the proxy.
func (o *Options) Run() error {
	// set log file
	if o.LogFile != "" {
		f, err := os.OpenFile(o.LogFile, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o666)
		if err != nil {
			return fmt.Errorf("unable to open log file: %w", err)
		}

		defer func() {
			if err := f.Close(); err != nil {
				log.Errorf("Cannot close log file: %v", err)
			}
		}()

		log.SetOutput(f)
	}

	// set log level
	parsedLogLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("unable to set log level: %w", err)
	}
	log.SetLevel(parsedLogLevel)

	// parse TLS files
	parsedCertData, err := utiltls.ParseFiles(CAFile, CertificateFile, KeyFile)
	if err != nil {
		return err
	}

	// generate random proxy instance ID
	instanceID := uuid.New().String()
	log.Infof("Starting proxy, node: %s, instance ID: %s.", o.Node, instanceID)

	store := workload.NewStore()
	proxy := server.NewProxy(o.Node, store, parsedCertData)

	tunnelServer, err := server.NewTunnelServer(proxy)
	if err != nil {
		return err
	}

	runnableManager := runnable.NewManager()
	runnableManager.AddServer(o.OutboundAddress, server.NewOutboundServer(proxy))
	runnableManager.AddServer(o.TunnelAddress, tunnelServer)
	runnableManager.AddServer(o.AuthzAddress, server.NewAuthzServer(proxy))

	adminServer := admin.NewServer(store)
	runnableManager.AddServer(o.AdminAddress, adminServer)

	if o.WorkloadsFile != "" {
		runnableManager.Add(workload.NewWatcher(o.WorkloadsFile, store))
	}

	return runnableManager.Run()
}

// NewNMProxyCommand creates a *cobra.Command object with default parameters.
func NewNMProxyCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:          "nm-proxy",
		Long:         `nm-proxy: per-node proxy routing, tunneling and authorizing mesh traffic`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.Run()
		},
	}

	opts.AddFlags(cmd.Flags())

	for _, flag := range opts.RequiredFlags() {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			fmt.Printf("Error marking required flag '%s': %v\n", flag, err)
			os.Exit(1)
		}
	}

	return cmd
}
