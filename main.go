/*
 * Copyright (c) 2025, Dana Burkart <dana.burkart@gmail.com>
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"github.com/gitscope/gitscope/cmd/gitscope"
)

func main() {
	gitscope.Execute()
}
