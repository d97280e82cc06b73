// Package config provides centralized configuration management for the
// sales dashboard. It loads settings from the environment and an optional
// YAML file, validates them and resolves file system paths.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file (config.yaml, configs/config.yaml or SALESDASH_CONFIG_FILE)
//  3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SALESDASH_<SECTION>_<KEY>:
//
//	SALESDASH_SERVER_PORT=8080
//	SALESDASH_PATHS_DATA_DIR=/srv/olist
//	SALESDASH_SOURCE_KIND=sqlite
//	SALESDASH_SOURCE_DSN=file:olist.db
//	SALESDASH_ANALYTICS_REVENUE_MODE=payment
//
// # Input Tables
//
// Seven tables are required. Their file (or SQL table, or collection) names
// default to the public Olist dataset names and can be overridden per table
// through source.tables:
//
//	source:
//	  kind: csv
//	  tables:
//	    orders: orders.csv
package config
