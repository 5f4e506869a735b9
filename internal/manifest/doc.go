// Package manifest loads an ensemble description from HCL and turns it
// into entity builders.
//
// A manifest holds exactly one ensemble block:
//
//	ensemble {
//	  size        = 3
//	  active      = "0-1"
//	  run_path    = "/scratch/case/realization-${iens}"
//	  max_runtime = "30m"
//
//	  queue {
//	    system      = "LOCAL"
//	    max_submit  = 2
//	    max_running = 4
//	  }
//
//	  analysis {
//	    stop_long_running = true
//	  }
//
//	  stage "forward_model" {
//	    step {
//	      job "copy" {
//	        executable = "/bin/cp"
//	        args       = ["seed", "seed-${iens}"]
//	      }
//	    }
//	  }
//	}
//
// Expressions in run_path, args and stdin are evaluated once per
// realization with the variable iens bound to its index. Stage, step and
// job ids follow declaration order.
package manifest
