package testutil

// TestGraphYAML is a small graph of two tightly knit groups joined by one
// weak edge. Label propagation puts each group in its own level-0
// community and merges both at level 1.
const TestGraphYAML = `nodes:
  - id: d1
    name: Drone Alpha
    type: robotics.drone
    description: Autonomous survey drone
    properties:
      capability: navigation
  - id: d2
    name: Drone Bravo
    type: robotics.drone
    description: Autonomous inspection drone
  - id: d3
    name: Ground Station
    type: robotics.station
    description: Launch and recovery station for the drone fleet
  - id: s1
    name: LiDAR Sensor
    type: robotics.sensor
    description: Distance sensor
  - id: s2
    name: Thermal Camera
    type: robotics.sensor
    description: Infrared imaging sensor
  - id: s3
    name: Sensor Hub
    type: robotics.hub
    description: Aggregates sensor readings
edges:
  - {id: e-d1-d2, source: d1, target: d2, type: flies_with, weight: 1}
  - {id: e-d1-d3, source: d1, target: d3, type: docks_at, weight: 1}
  - {id: e-d2-d3, source: d2, target: d3, type: docks_at, weight: 1}
  - {id: e-s1-s2, source: s1, target: s2, type: calibrated_with, weight: 1}
  - {id: e-s1-s3, source: s1, target: s3, type: reports_to, weight: 1}
  - {id: e-s2-s3, source: s2, target: s3, type: reports_to, weight: 1}
  - {id: e-d1-s1, source: d1, target: s1, type: carries, weight: 0.5}
`

// TestGraphNodeIDs lists the node IDs of TestGraphYAML in sorted order.
var TestGraphNodeIDs = []string{"d1", "d2", "d3", "s1", "s2", "s3"}
