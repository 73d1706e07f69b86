package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-outcome/host"
)

const EnvVarPrefix = "OP_OUTCOME"

var (
	Input = &cli.StringFlag{
		Name:     "input",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "INPUT"),
		Usage:    "Path to the host event log to replay, or '-' for stdin",
	}
	Dialect = &cli.StringFlag{
		Name:    "dialect",
		Value:   string(host.DialectGoTest),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DIALECT"),
		Usage:   fmt.Sprintf("Format of the host event log (%s)", strings.Join(dialectNames(), ", ")),
		Action: func(_ *cli.Context, v string) error {
			return validateDialect(v)
		},
	}
	DataSources = &cli.StringFlag{
		Name:    "data-sources",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DATA_SOURCES"),
		Usage:   "Path to the data source manifest (eg. 'datasources.yaml' or 'datasources.toml')",
	}
	SourceDir = &cli.StringFlag{
		Name:    "source-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SOURCE_DIR"),
		Usage:   "Go module directory scanned for unconditionally skipped tests",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   "outcomes",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_DIR"),
		Usage:   "Directory the outcome reports are written to",
	}
	PostgresURI = &cli.StringFlag{
		Name:    "postgres-uri",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POSTGRES_URI"),
		Usage:   "PostgreSQL connection string; outcomes are stored when set",
	}
	RunID = &cli.StringFlag{
		Name:    "run-id",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_ID"),
		Usage:   "Identifier of the run; a random one is generated when empty",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address of the health and status server (eg. '0.0.0.0:8080'); disabled when empty",
	}
)

var requiredFlags = []cli.Flag{
	Input,
}

var optionalFlags = []cli.Flag{
	Dialect,
	DataSources,
	SourceDir,
	OutputDir,
	PostgresURI,
	RunID,
	HealthzAddr,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

func dialectNames() []string {
	names := make([]string, 0, len(host.AllDialects))
	for _, d := range host.AllDialects {
		names = append(names, string(d))
	}
	return names
}

func validateDialect(v string) error {
	if !host.Dialect(v).IsValid() {
		return fmt.Errorf("invalid dialect %q, must be one of: %s", v, strings.Join(dialectNames(), ", "))
	}
	return nil
}
