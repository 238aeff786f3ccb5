package app

// listPageSize is how many match records ListMyMatches scans per store page.
const listPageSize = 100
