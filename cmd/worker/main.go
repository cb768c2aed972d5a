/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"os"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/worker"
)

func main() {
	a, err := worker.NewApp()
	if err != nil {
		klog.ErrorS(err, "failed to new worker")
		os.Exit(1)
	}
	a.Run()
}
