// Package config loads the addonkit YAML configuration.
//
// A file is decoded onto Default(), then ADDONKIT_LOG_LEVEL, ADDONKIT_DATA_DIR
// and ADDONKIT_STORAGE_BACKEND override the matching fields, then Validate
// runs:
//
//	log:
//	  level: info
//	  json: false
//	  table:
//	    enabled: true
//	    level: warn
//	    max_rows: 1000
//	storage:
//	  backend: bolt        # or pebble
//	  data_dir: ./addonkit-data
//	options:
//	  queue_max: 50
//	  cache_max: 100
//	  absent_max: 100
//	  batch_size: 25
//	hooks:
//	  - name: count-visits
//	    channel: page.view
//	    action: increment
//	    args: {by: 1}
package config
