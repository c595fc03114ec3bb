// Copyright (C) 2016  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package kafka

import (
	"flag"
)

// Addresses is the flag for kafka's comma-separated addresses. Empty
// by default so a standalone invocation with no config file and no
// -kafka flag stays in single-instance, no-replication mode instead of
// trying to dial a broker that may not exist.
var Addresses = flag.String("kafka", "", "kafka's comma-separated addresses")
